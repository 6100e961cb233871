package amd64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pjulia/pkg/hir"
	"pjulia/pkg/lang"
	"pjulia/pkg/lir"
	"pjulia/pkg/typing"
)

func compileSource(t *testing.T, src string) string {
	t.Helper()
	decls, err := lang.Parse("test.jl", src)
	require.NoError(t, err)
	prog, err := typing.Check(decls)
	require.NoError(t, err)
	hirSrc, err := hir.Lower(prog)
	require.NoError(t, err)
	lirSrc, err := lir.Lower(hirSrc)
	require.NoError(t, err)
	asm, err := Emit(lirSrc)
	require.NoError(t, err)
	return asm
}

func TestPipelineWholeProgram(t *testing.T) {
	asm := compileSource(t, `mutable struct Point
x::Int64
y::Int64
end

function dist2(p)
p.x * p.x + p.y * p.y
end

function scale(p, k::Int64)
p.x = k * p.x
p.y = k * p.y
p
end

p = Point()
p.x = 3
p.y = 4
q = scale(p, 2)
println(dist2(q))
`)
	assert.Contains(t, asm, "\t.globl main\n")
	assert.Contains(t, asm, "call native_alloc")
	assert.Contains(t, asm, "call native_println")
	assert.Contains(t, asm, "\t.data\n")
}

func TestPipelineDispatch(t *testing.T) {
	asm := compileSource(t, `function f(x::Int64)
x + 1
end
function f(x::Bool)
0
end
println(f(3))
`)
	// The dispatch thunk falls back to a native panic when no overload
	// matches at runtime.
	assert.Contains(t, asm, "call native_panic")
	assert.Contains(t, asm, "Dynamic dispatch failure")
}

func TestPipelineControlFlow(t *testing.T) {
	asm := compileSource(t, `function fact(n::Int64)::Int64
r = 1
for i = 1:n
r = r * i
end
r
end
println(fact(5))
`)
	assert.Contains(t, asm, "jz ")
	assert.Contains(t, asm, "imulq")
}

func TestPipelineStringLiterals(t *testing.T) {
	asm := compileSource(t, "println(\"hello\")\n")
	assert.Contains(t, asm, "string_0:\n\t.string \"hello\"\n")
}

func TestPipelineDeterminism(t *testing.T) {
	src := `g = 10
function f(a, b::Int64)
if a
b
else
-b
end
end
h = f(true, g)
`
	a := compileSource(t, src)
	b := compileSource(t, src)
	assert.Equal(t, a, b)
}

func TestPipelineIRTextRoundTrip(t *testing.T) {
	src := `x = 1
y = x + 2
println(y)
`
	decls, err := lang.Parse("test.jl", src)
	require.NoError(t, err)
	prog, err := typing.Check(decls)
	require.NoError(t, err)
	hirSrc, err := hir.Lower(prog)
	require.NoError(t, err)

	// Compile directly, and through the printed-then-parsed IRs; the
	// assembly must agree.
	direct, err := lir.Lower(hirSrc)
	require.NoError(t, err)
	directAsm, err := Emit(direct)
	require.NoError(t, err)

	reparsedHIR, err := hir.ParseSource("x.hir", hirSrc.String())
	require.NoError(t, err)
	viaHIR, err := lir.Lower(reparsedHIR)
	require.NoError(t, err)
	viaHIRAsm, err := Emit(viaHIR)
	require.NoError(t, err)
	assert.Equal(t, directAsm, viaHIRAsm)

	reparsedLIR, err := lir.ParseSource("x.lir", direct.String())
	require.NoError(t, err)
	viaLIRAsm, err := Emit(reparsedLIR)
	require.NoError(t, err)
	assert.Equal(t, directAsm, viaLIRAsm)
}
