// Package samplers implements the synthetic data sources used for adversarial training:
// a "true" distribution the generator should learn to imitate, and the noise the
// generator transforms.
package samplers

import (
	"fmt"
	"math/rand"

	"github.com/janpfeifer/ganlab/internal/parameters"
)

// Sampler yields batches of scalar values from some distribution.
type Sampler interface {
	// Sample returns n freshly drawn values.
	Sample(n int) []float32
}

// Normal samples from the gaussian N(Mean, Stdev).
type Normal struct {
	Mean, Stdev float32

	rng *rand.Rand
}

// NewNormal creates a gaussian sampler. With seed == 0 it uses the shared
// global random source, otherwise its own deterministic one.
func NewNormal(mean, stdev float32, seed int64) *Normal {
	return &Normal{Mean: mean, Stdev: stdev, rng: newRng(seed)}
}

// Sample implements Sampler.
func (s *Normal) Sample(n int) []float32 {
	values := make([]float32, n)
	for ii := range values {
		values[ii] = s.Mean + s.Stdev*float32(normFloat64(s.rng))
	}
	return values
}

// String implements fmt.Stringer.
func (s *Normal) String() string {
	return fmt.Sprintf("Normal(%g, %g)", s.Mean, s.Stdev)
}

// Uniform samples uniformly from [Low, High).
type Uniform struct {
	Low, High float32

	rng *rand.Rand
}

// NewUniform creates a uniform sampler. With seed == 0 it uses the shared
// global random source, otherwise its own deterministic one.
func NewUniform(low, high float32, seed int64) *Uniform {
	return &Uniform{Low: low, High: high, rng: newRng(seed)}
}

// Sample implements Sampler.
func (s *Uniform) Sample(n int) []float32 {
	values := make([]float32, n)
	for ii := range values {
		values[ii] = s.Low + (s.High-s.Low)*float32(float64Value(s.rng))
	}
	return values
}

// String implements fmt.Stringer.
func (s *Uniform) String() string {
	return fmt.Sprintf("Uniform[%g, %g)", s.Low, s.High)
}

// FromParams builds the pair of samplers used for adversarial training from the
// given configuration. Recognized parameters (with defaults):
//
//   - "real_mean" (4.0) and "real_stdev" (1.25): the "true" distribution.
//   - "noise_low" (0.0) and "noise_high" (1.0): the noise fed to the generator.
//   - "seed" (0): if != 0, both samplers become deterministic.
func FromParams(params parameters.Params) (real, noise Sampler, err error) {
	mean, err := parameters.PopParamOr(params, "real_mean", float32(4.0))
	if err != nil {
		return nil, nil, err
	}
	stdev, err := parameters.PopParamOr(params, "real_stdev", float32(1.25))
	if err != nil {
		return nil, nil, err
	}
	low, err := parameters.PopParamOr(params, "noise_low", float32(0.0))
	if err != nil {
		return nil, nil, err
	}
	high, err := parameters.PopParamOr(params, "noise_high", float32(1.0))
	if err != nil {
		return nil, nil, err
	}
	seed, err := parameters.PopParamOr(params, "seed", 0)
	if err != nil {
		return nil, nil, err
	}
	return NewNormal(mean, stdev, int64(seed)), NewUniform(low, high, int64(seed)), nil
}

func newRng(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewSource(seed))
}

func normFloat64(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.NormFloat64()
	}
	return rng.NormFloat64()
}

func float64Value(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.Float64()
	}
	return rng.Float64()
}
