package token

import "testing"

func TestPosUnknown(t *testing.T) {
	if !NoPos.Unknown() {
		t.Errorf("NoPos should be unknown")
	}
	if Pos(1).Unknown() {
		t.Errorf("Pos(1) should be known")
	}
}
