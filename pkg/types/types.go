package types

import "errors"

// ErrMathDomain marks a domain fault: the configured formula is undefined
// somewhere in the evaluated sub-interval (a negative operand to a root, a
// division by zero). It is the one error class that aborts a whole run, so
// both the compute side and the worker loop need to agree on it.
var ErrMathDomain = errors.New("math domain error")

// WorkerID is the opaque identity a worker mints at startup. It is stable for
// the worker's lifetime and unrelated to the worker's network address: two
// requests bearing the same WorkerID are the same worker even when they
// arrive from different source ports.
type WorkerID string

// Method selects the numerical integration rule a worker applies to its
// assigned sub-interval. The wire encoding is the three-letter name itself.
type Method string

const (
	MethodSimpson   Method = "SIM"
	MethodTrapezoid Method = "TRA"
	MethodLeftRect  Method = "LRE"
	MethodRightRect Method = "RRE"
	MethodMidRect   Method = "MRE"
)

// Valid reports whether m names a known integration rule.
func (m Method) Valid() bool {
	switch m {
	case MethodSimpson, MethodTrapezoid, MethodLeftRect, MethodRightRect, MethodMidRect:
		return true
	}
	return false
}

// Task describes one unit of work handed to a worker: evaluate the formula
// over [Lower, Upper] with the given rule. The formula and method are the
// same for every task in a run; only the bounds differ per chunk.
type Task struct {
	Formula string
	Method  Method
	Lower   float64
	Upper   float64
}

// RunState represents the lifecycle of a computation run.
type RunState string

const (
	RunStateRunning  RunState = "running"
	RunStateFinished RunState = "finished"
	RunStateAborted  RunState = "aborted"
)
