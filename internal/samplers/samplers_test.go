package samplers

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/janpfeifer/ganlab/internal/parameters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meanAndStdev(values []float32) (mean, stdev float32) {
	for _, v := range values {
		mean += v
	}
	mean /= float32(len(values))
	for _, v := range values {
		stdev += (v - mean) * (v - mean)
	}
	stdev = math32.Sqrt(stdev / float32(len(values)))
	return
}

func TestNormal(t *testing.T) {
	s := NewNormal(4.0, 1.25, 42)
	values := s.Sample(10000)
	require.Len(t, values, 10000)
	mean, stdev := meanAndStdev(values)
	assert.InDelta(t, 4.0, mean, 0.1)
	assert.InDelta(t, 1.25, stdev, 0.1)
}

func TestNormalDeterminism(t *testing.T) {
	a := NewNormal(0, 1, 17).Sample(100)
	b := NewNormal(0, 1, 17).Sample(100)
	assert.Equal(t, a, b)
}

func TestUniform(t *testing.T) {
	s := NewUniform(-1, 3, 42)
	values := s.Sample(10000)
	for _, v := range values {
		require.GreaterOrEqual(t, v, float32(-1))
		require.Less(t, v, float32(3))
	}
	mean, _ := meanAndStdev(values)
	assert.InDelta(t, 1.0, mean, 0.1)
}

func TestFromParams(t *testing.T) {
	params := parameters.NewFromConfigString("real_mean=2,real_stdev=0.5,noise_high=10,seed=7")
	real, noise, err := FromParams(params)
	require.NoError(t, err)
	assert.Empty(t, params) // All sampler parameters are consumed.

	normal, ok := real.(*Normal)
	require.True(t, ok)
	assert.Equal(t, float32(2), normal.Mean)
	assert.Equal(t, float32(0.5), normal.Stdev)

	uniform, ok := noise.(*Uniform)
	require.True(t, ok)
	assert.Equal(t, float32(0), uniform.Low)
	assert.Equal(t, float32(10), uniform.High)

	_, _, err = FromParams(parameters.NewFromConfigString("real_mean=oops"))
	require.Error(t, err)
}
