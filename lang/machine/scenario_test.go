package machine_test

import (
	"bytes"
	"testing"

	"github.com/mna/mica/lang/machine"
	"github.com/mna/mica/lang/natives"
	"github.com/stretchr/testify/require"
)

// These six programs are verbatim from the specification's "concrete
// scenarios" list: each names the guest program and its expected stdout.
func runScenario(t *testing.T, src string) string {
	t.Helper()
	vm := machine.New()
	var out, errOut bytes.Buffer
	vm.Stdout = &out
	vm.Stderr = &errOut
	require.NoError(t, natives.Register(vm))
	ok := vm.CompileAndRun(src)
	require.True(t, ok, "execution failed: %s", errOut.String())
	return out.String()
}

func TestScenarioArithmeticPrecedence(t *testing.T) {
	got := runScenario(t, `let x = 1 + 2 * 3 print(x)`)
	require.Equal(t, "7\n", got)
}

func TestScenarioFunctionCallAndReturn(t *testing.T) {
	got := runScenario(t, `fn add(a, b) { return a + b } print(add(2, 3))`)
	require.Equal(t, "5\n", got)
}

func TestScenarioCounterClosureClosesUpvalueAcrossCalls(t *testing.T) {
	got := runScenario(t, `
fn make_counter() {
	let mut n = 0
	return || {
		n = n + 1
		return n
	}
}
let c = make_counter()
print(c())
print(c())
print(c())
`)
	require.Equal(t, "1\n2\n3\n", got)
}

func TestScenarioForLoopOverArray(t *testing.T) {
	got := runScenario(t, `
let a = [10, 20, 30]
for v in a {
	print(v)
}
`)
	require.Equal(t, "10\n20\n30\n", got)
}

func TestScenarioWhileIfElseControlFlow(t *testing.T) {
	got := runScenario(t, `
let mut i = 0
while i < 3 {
	if i == 1 {
		i = i + 1
	} else {
		print(i)
		i = i + 1
	}
}
`)
	require.Equal(t, "0\n2\n", got)
}

func TestScenarioRecursiveFactorialViaGlobal(t *testing.T) {
	got := runScenario(t, `
fn fact(n) {
	if n <= 1 {
		return 1
	} else {
		return n * fact(n - 1)
	}
}
print(fact(6))
`)
	require.Equal(t, "720\n", got)
}
