package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrid/integrid/pkg/types"
)

// TestFormulaEval tests evaluation of valid formulas, including precedence
func TestFormulaEval(t *testing.T) {
	tests := []struct {
		src  string
		x    float64
		want float64
	}{
		{src: "2*x+1", x: 3, want: 7},
		{src: "2 * x + 1", x: 0, want: 1},
		{src: "x", x: 1.5, want: 1.5},
		{src: "42", x: 0, want: 42},
		{src: "-x", x: 2, want: -2},
		{src: "x - -1", x: 1, want: 2},
		{src: "1 + 2 * 3", x: 0, want: 7},         // * before +
		{src: "(1 + 2) * 3", x: 0, want: 9},       // parens override
		{src: "2 ^ 3", x: 0, want: 8},             // exponentiation
		{src: "-x ^ 2", x: 3, want: -9},           // ^ binds tighter than unary minus
		{src: "2 ^ x ^ 2", x: 2, want: 16},        // right associative: 2^(2^2)
		{src: "sqrt(x + 1/16)", x: 0, want: 0.25}, // whitelisted call
		{src: "10 - 4 - 3", x: 0, want: 3},        // left associative
		{src: "1/2/2", x: 0, want: 0.25},          // left associative division
		{src: "2 * x + 1 / sqrt(x + 1/16)", x: 0, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			f, err := Compile(tt.src)
			require.NoError(t, err)

			got, err := f.Eval(tt.x)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

// TestCompileRejectsInvalidFormulas tests the whitelist: anything outside the
// tiny grammar must fail to compile
func TestCompileRejectsInvalidFormulas(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "empty", src: ""},
		{name: "trailing operator", src: "x +"},
		{name: "unbalanced parens", src: "(x + 1"},
		{name: "unknown variable", src: "y + 1"},
		{name: "unknown function", src: "exp(x)"},
		{name: "call without parens", src: "sqrt x"},
		{name: "statement-ish input", src: "x = 1"},
		{name: "attribute access", src: "x.bit_length"},
		{name: "string literal", src: `"hello"`},
		{name: "double operator", src: "x */ 2"},
		{name: "malformed number", src: "1.2.3"},
		{name: "bracket syntax", src: "x[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src)
			require.Error(t, err)
		})
	}
}

// TestEvalDomainFaults tests that undefined points report types.ErrMathDomain
func TestEvalDomainFaults(t *testing.T) {
	tests := []struct {
		name string
		src  string
		x    float64
	}{
		{name: "sqrt of negative", src: "sqrt(x)", x: -1},
		{name: "division by zero", src: "1 / x", x: 0},
		{name: "fractional power of negative", src: "x ^ 0.5", x: -4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.src)
			require.NoError(t, err)

			_, err = f.Eval(tt.x)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrMathDomain)
		})
	}
}

// TestProbe tests the pre-run formula check
func TestProbe(t *testing.T) {
	assert.NoError(t, Probe("2 * x + 1 / sqrt(x + 1/16)", 10.0))
	assert.Error(t, Probe("import x", 10.0))

	err := Probe("sqrt(-1 - x)", 10.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrMathDomain)
}
