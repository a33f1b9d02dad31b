package compute

import (
	"fmt"
	"math"

	"github.com/integrid/integrid/pkg/types"
)

// Integrand is a scalar function of one variable that may be undefined at
// some points, in which case it reports a types.ErrMathDomain fault.
type Integrand func(x float64) (float64, error)

const (
	// defaultSegments is the fixed segment count for the rectangle and
	// Simpson rules.
	defaultSegments = 500

	// trapezoidPrecision is the relative precision the adaptive trapezoid
	// rule refines towards.
	trapezoidPrecision = 1e-12

	// trapezoidMaxHalvings bounds the refinement loop so a pathological
	// integrand cannot spin forever.
	trapezoidMaxHalvings = 20
)

// rectangleRule is the generalized rectangle rule. frac in [0, 1] places the
// sample point within each segment: 0 for left, 0.5 for midpoint, 1 for
// right.
func rectangleRule(f Integrand, a, b float64, segments int, frac float64) (float64, error) {
	dx := (b - a) / float64(segments)
	sum := 0.0
	start := a + frac*dx
	for i := 0; i < segments; i++ {
		v, err := f(start + float64(i)*dx)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum * dx, nil
}

// LeftRectangle integrates with samples at the left edge of each segment.
func LeftRectangle(f Integrand, a, b float64, segments int) (float64, error) {
	return rectangleRule(f, a, b, segments, 0.0)
}

// RightRectangle integrates with samples at the right edge of each segment.
func RightRectangle(f Integrand, a, b float64, segments int) (float64, error) {
	return rectangleRule(f, a, b, segments, 1.0)
}

// MidpointRectangle integrates with samples at the center of each segment.
func MidpointRectangle(f Integrand, a, b float64, segments int) (float64, error) {
	return rectangleRule(f, a, b, segments, 0.5)
}

// Trapezoid integrates by repeated interval halving until the estimate is
// stable to the target relative precision. New sample points land exactly in
// the middles of the previous segments, so each refinement reuses the
// previous estimate.
func Trapezoid(f Integrand, a, b float64) (float64, error) {
	nSeg := 1
	dx := (b - a) / float64(nSeg)

	fa, err := f(a)
	if err != nil {
		return 0, err
	}
	fb, err := f(b)
	if err != nil {
		return 0, err
	}
	ans := 0.5 * (fa + fb)
	for i := 1; i < nSeg; i++ {
		v, err := f(a + float64(i)*dx)
		if err != nil {
			return 0, err
		}
		ans += v
	}
	ans *= dx

	errEst := math.Max(1.0, math.Abs(ans))
	for halvings := 0; errEst > math.Abs(trapezoidPrecision*ans); halvings++ {
		if halvings >= trapezoidMaxHalvings {
			break
		}
		old := ans
		mid, err := MidpointRectangle(f, a, b, nSeg)
		if err != nil {
			return 0, err
		}
		ans = 0.5 * (ans + mid)
		nSeg *= 2
		errEst = math.Abs(ans - old)
	}
	return ans, nil
}

// Simpson integrates with Simpson's rule over an even number of segments.
func Simpson(f Integrand, a, b float64, segments int) (float64, error) {
	if segments%2 == 1 {
		segments++
	}
	dx := (b - a) / float64(segments)

	fa, err := f(a)
	if err != nil {
		return 0, err
	}
	fad, err := f(a + dx)
	if err != nil {
		return 0, err
	}
	fb, err := f(b)
	if err != nil {
		return 0, err
	}
	sum := fa + 4*fad + fb

	for i := 1; i < segments/2; i++ {
		even, err := f(a + float64(2*i)*dx)
		if err != nil {
			return 0, err
		}
		odd, err := f(a + float64(2*i+1)*dx)
		if err != nil {
			return 0, err
		}
		sum += 2*even + 4*odd
	}
	return sum * dx / 3, nil
}

// Integrate applies the named rule over [a, b].
func Integrate(method types.Method, f Integrand, a, b float64) (float64, error) {
	switch method {
	case types.MethodSimpson:
		return Simpson(f, a, b, defaultSegments)
	case types.MethodTrapezoid:
		return Trapezoid(f, a, b)
	case types.MethodLeftRect:
		return LeftRectangle(f, a, b, defaultSegments)
	case types.MethodRightRect:
		return RightRectangle(f, a, b, defaultSegments)
	case types.MethodMidRect:
		return MidpointRectangle(f, a, b, defaultSegments)
	}
	return 0, fmt.Errorf("unknown integration method %q", method)
}
