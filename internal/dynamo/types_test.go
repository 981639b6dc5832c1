package dynamo

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0}, true},
		{"zeros", State{0.0, 0.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_Norms(t *testing.T) {
	tests := []struct {
		state  State
		norm   float64
		maxAbs float64
	}{
		{State{3, 4}, 5.0, 4.0},
		{State{1, 0}, 1.0, 1.0},
		{State{0, 0}, 0.0, 0.0},
		{State{1, -1, 1, 1}, 2.0, 1.0},
	}

	for _, tt := range tests {
		if got := tt.state.Norm(); math.Abs(got-tt.norm) > 1e-10 {
			t.Errorf("Norm(%v) = %v, want %v", tt.state, got, tt.norm)
		}
		if got := tt.state.MaxAbs(); got != tt.maxAbs {
			t.Errorf("MaxAbs(%v) = %v, want %v", tt.state, got, tt.maxAbs)
		}
	}
}

func TestState_Arithmetic(t *testing.T) {
	a := State{1, 2, 3}
	b := State{4, 5, 6}

	sum := a.Add(b)
	if sum[0] != 5 || sum[1] != 7 || sum[2] != 9 {
		t.Errorf("Add failed: got %v", sum)
	}

	diff := b.Sub(a)
	if diff[0] != 3 || diff[1] != 3 || diff[2] != 3 {
		t.Errorf("Sub failed: got %v", diff)
	}

	scaled := a.Scale(2)
	if scaled[0] != 2 || scaled[1] != 4 || scaled[2] != 6 {
		t.Errorf("Scale failed: got %v", scaled)
	}

	c := a.Clone()
	c[0] = 99
	if a[0] == 99 {
		t.Error("Clone did not create independent copy")
	}
}

func TestDefaultTolerances(t *testing.T) {
	tol := DefaultTolerances()
	want := Tolerances{AbsTol: 1e-6, RelTol: 1e-6, EpsTol: 0.8, FacMax: 5, FacMin: 0.1}
	if tol != want {
		t.Errorf("DefaultTolerances() = %+v, want %+v", tol, want)
	}
	if err := tol.Validate(); err != nil {
		t.Errorf("default tolerances rejected: %v", err)
	}
}

func TestTolerances_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Tolerances)
	}{
		{"zero abstol", func(tol *Tolerances) { tol.AbsTol = 0 }},
		{"negative abstol", func(tol *Tolerances) { tol.AbsTol = -1e-6 }},
		{"NaN abstol", func(tol *Tolerances) { tol.AbsTol = math.NaN() }},
		{"negative reltol", func(tol *Tolerances) { tol.RelTol = -1 }},
		{"zero epstol", func(tol *Tolerances) { tol.EpsTol = 0 }},
		{"epstol above one", func(tol *Tolerances) { tol.EpsTol = 1.5 }},
		{"facmin zero", func(tol *Tolerances) { tol.FacMin = 0 }},
		{"facmin one", func(tol *Tolerances) { tol.FacMin = 1 }},
		{"facmax one", func(tol *Tolerances) { tol.FacMax = 1 }},
		{"facmax inf", func(tol *Tolerances) { tol.FacMax = math.Inf(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tol := DefaultTolerances()
			tt.mutate(&tol)
			err := tol.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
	if cfg.Retries() != DefaultMaxRetries {
		t.Errorf("Retries() = %d, want %d", cfg.Retries(), DefaultMaxRetries)
	}

	cfg.MaxRetries = 0
	if cfg.Retries() != DefaultMaxRetries {
		t.Errorf("zero MaxRetries should select the default, got %d", cfg.Retries())
	}

	bad := []Config{
		{Tolerances: DefaultTolerances(), MaxRetries: -1},
		{Tolerances: DefaultTolerances(), HistoryLimit: -5},
		{Tolerances: DefaultTolerances(), MinDt: -1e-9},
		{},
	}
	for i, c := range bad {
		if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("case %d: Validate() = %v, want ErrInvalidConfig", i, err)
		}
	}
}

func TestSimulationError(t *testing.T) {
	err := &SimulationError{Step: 150, Time: 1.5, Dt: 1e-3, Wrapped: ErrMaxRetries}
	if !errors.Is(err, ErrMaxRetries) {
		t.Error("SimulationError should unwrap to its cause")
	}
	if !strings.HasPrefix(err.Error(), "step 150 (t=1.5, dt=0.001)") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
