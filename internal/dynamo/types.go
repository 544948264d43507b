package dynamo

import "math"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// System is a first-order ODE system dX/dt = f(X, t). In mgsim the
// independent variable t is always the scale factor a.
type System interface {
	Derive(x State, t float64) State
	StateDim() int
}

type Stepper interface {
	Step(sys System, x State, t, h float64) State
}

// AdaptiveStepper advances one trial step and reports the error ratio
// (estimated error / tolerance). A ratio above 1 means the step must be
// rejected and retried with the suggested size.
type AdaptiveStepper interface {
	Stepper
	StepAdaptive(sys System, x State, t, h, tol float64) (next State, errRatio, hNext float64)
}
