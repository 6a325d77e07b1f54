package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenString(t *testing.T) {
	for tok := Token(0); tok < maxToken; tok++ {
		require.NotEmpty(t, tok.String(), "token %d missing a String()", tok)
	}
}

func TestLookupIdent(t *testing.T) {
	for tok := kwStart; tok <= kwEnd; tok++ {
		require.Equal(t, tok, LookupIdent(tokenNames[tok]))
	}
	require.Equal(t, IDENT, LookupIdent("not_a_keyword"))
	require.Equal(t, IDENT, LookupIdent("x"))
}

func TestGoString(t *testing.T) {
	require.Equal(t, "'+'", PLUS.GoString())
	require.Equal(t, "identifier", IDENT.GoString())
}
