package compute

import (
	"errors"
	"fmt"

	"github.com/integrid/integrid/pkg/types"
)

// ErrNotConfigured means Compute was called before Configure.
var ErrNotConfigured = errors.New("integrator not configured")

// Integrator evaluates one assigned task: it compiles the task's formula and
// integrates it over the task's bounds with the task's rule. It implements
// the worker loop's compute callback.
//
// An Integrator is reconfigured for every task; it is used from a single
// goroutine and needs no locking.
type Integrator struct {
	formula *Formula
	task    types.Task
}

// NewIntegrator creates an unconfigured integrator.
func NewIntegrator() *Integrator {
	return &Integrator{}
}

// Configure compiles the formula and validates the method for the given
// task. A formula that fails the whitelist is rejected here, before any
// computation starts.
func (in *Integrator) Configure(task types.Task) error {
	if !task.Method.Valid() {
		return fmt.Errorf("unknown integration method %q", task.Method)
	}
	formula, err := Compile(task.Formula)
	if err != nil {
		return fmt.Errorf("compile formula: %w", err)
	}
	in.formula = formula
	in.task = task
	return nil
}

// Compute integrates the configured formula over the configured bounds. A
// types.ErrMathDomain fault means the formula is undefined somewhere in the
// sub-interval; the worker reports ERR and stops.
func (in *Integrator) Compute() (float64, error) {
	if in.formula == nil {
		return 0, ErrNotConfigured
	}
	return Integrate(in.task.Method, in.formula.Eval, in.task.Lower, in.task.Upper)
}

// Probe checks that a formula compiles and evaluates to a finite value at
// the probe point. The coordinator runs this against a candidate formula
// before a run starts, so an unusable formula is a configuration fault
// instead of a mid-run abort.
func Probe(formulaSrc string, x float64) error {
	formula, err := Compile(formulaSrc)
	if err != nil {
		return err
	}
	if _, err := formula.Eval(x); err != nil {
		return fmt.Errorf("formula undefined at probe point x=%g: %w", x, err)
	}
	return nil
}
