package spsa

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/atomic"
)

const (
	DefaultAlpha      = 2
	DefaultBeta       = 1
	DefaultTargetLoad = 70

	MaxTargetLoad = 100

	maxGain = math.MaxInt32
)

var (
	ErrInvalidAlpha      = errors.New("alpha must be within [0, 2147483647]")
	ErrInvalidBeta       = errors.New("beta must be within [1, 2147483647]")
	ErrInvalidTargetLoad = errors.New("target load must be within [1, 100]")
)

// Params is one consistent read of the tunables, taken once per tick.
type Params struct {
	Alpha      int
	Beta       int
	TargetLoad uint
}

// Validate applies the same rules as the Tunables setters.
func (p Params) Validate() error {
	if err := validateAlpha(p.Alpha); err != nil {
		return err
	}
	if err := validateBeta(p.Beta); err != nil {
		return err
	}
	return validateTargetLoad(p.TargetLoad)
}

func validateAlpha(alpha int) error {
	if alpha < 0 || alpha > maxGain {
		return fmt.Errorf("%w: %d", ErrInvalidAlpha, alpha)
	}
	return nil
}

func validateBeta(beta int) error {
	if beta < 1 || beta > maxGain {
		return fmt.Errorf("%w: %d", ErrInvalidBeta, beta)
	}
	return nil
}

func validateTargetLoad(targetLoad uint) error {
	if targetLoad < 1 || targetLoad > MaxTargetLoad {
		return fmt.Errorf("%w: %d", ErrInvalidTargetLoad, targetLoad)
	}
	return nil
}

// DefaultParams returns alpha=2, beta=1, target load 70%.
func DefaultParams() Params {
	return Params{
		Alpha:      DefaultAlpha,
		Beta:       DefaultBeta,
		TargetLoad: DefaultTargetLoad,
	}
}

// Tunables holds the process-wide knobs. Readers on the sampling path use
// atomic loads; writers go through the validating setters.
type Tunables struct {
	alpha       atomic.Int32
	beta        atomic.Int32
	targetLoad  atomic.Uint32
	diagnostics atomic.Bool
}

func NewTunables() *Tunables {
	t := &Tunables{}
	t.alpha.Store(DefaultAlpha)
	t.beta.Store(DefaultBeta)
	t.targetLoad.Store(DefaultTargetLoad)
	return t
}

func (t *Tunables) SetAlpha(alpha int) error {
	if err := validateAlpha(alpha); err != nil {
		return err
	}
	t.alpha.Store(int32(alpha))
	return nil
}

func (t *Tunables) SetBeta(beta int) error {
	if err := validateBeta(beta); err != nil {
		return err
	}
	t.beta.Store(int32(beta))
	return nil
}

func (t *Tunables) SetTargetLoad(targetLoad uint) error {
	if err := validateTargetLoad(targetLoad); err != nil {
		return err
	}
	t.targetLoad.Store(uint32(targetLoad))
	return nil
}

func (t *Tunables) SetDiagnostics(enabled bool) {
	t.diagnostics.Store(enabled)
}

// SetParams validates p as a whole before storing any field.
func (t *Tunables) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	t.alpha.Store(int32(p.Alpha))
	t.beta.Store(int32(p.Beta))
	t.targetLoad.Store(uint32(p.TargetLoad))
	return nil
}

func (t *Tunables) Snapshot() Params {
	return Params{
		Alpha:      int(t.alpha.Load()),
		Beta:       int(t.beta.Load()),
		TargetLoad: uint(t.targetLoad.Load()),
	}
}

func (t *Tunables) Diagnostics() bool {
	return t.diagnostics.Load()
}
