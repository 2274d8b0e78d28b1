package gan

import (
	"strings"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/ganlab/internal/parameters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGAN(t *testing.T, config string) *GAN {
	g, err := New(parameters.NewFromConfigString(config))
	require.NoError(t, err)
	return g
}

func stageBatch(stage Stage, values []float32) *Batch {
	batch := &Batch{Values: values, Stages: make([]Stage, len(values))}
	for ii := range batch.Stages {
		batch.Stages[ii] = stage
	}
	return batch
}

func TestCompositeOptimizer_StageTrainability(t *testing.T) {
	g := newTestGAN(t, "batch_size=8")
	opt := g.optimizer

	checkTrainability := func(wantGenerator bool) {
		var sawGenerator, sawDiscriminator bool
		g.model.Context().EnumerateVariables(func(v *context.Variable) {
			scope := v.Scope()
			if strings.Contains(scope, "optimizers") {
				return
			}
			switch {
			case strings.HasPrefix(scope, context.RootScope+GeneratorScope):
				sawGenerator = true
				assert.Equalf(t, wantGenerator, v.Trainable, "generator variable %s/%s", scope, v.Name())
			case strings.HasPrefix(scope, context.RootScope+DiscriminatorScope):
				sawDiscriminator = true
				assert.Equalf(t, !wantGenerator, v.Trainable, "discriminator variable %s/%s", scope, v.Name())
			}
		})
		require.True(t, sawGenerator)
		require.True(t, sawDiscriminator)
	}

	opt.SetStage(StageGenerator)
	opt.setStageTrainability()
	checkTrainability(true)

	opt.SetStage(StageDiscriminatorFake)
	opt.setStageTrainability()
	checkTrainability(false)
}

func TestCompositeOptimizer_UnknownStage(t *testing.T) {
	g := newTestGAN(t, "batch_size=8")
	opt := NewCompositeOptimizer(g.model.Context())
	require.Equal(t, StageNone, opt.Stage())

	// Updating without selecting a stage first is a bug, not a recoverable state.
	err := exceptions.TryCatch[error](func() { opt.UpdateGraph(nil, nil, nil) })
	require.ErrorContains(t, err, "unknown stage")
}

// snapshotVariables copies the float32 variables under the given sub-model scope.
func snapshotVariables(ctx *context.Context, scope string) map[string][]float32 {
	snapshot := make(map[string][]float32)
	prefix := context.RootScope + scope
	ctx.EnumerateVariables(func(v *context.Variable) {
		if !strings.HasPrefix(v.Scope(), prefix) || strings.Contains(v.Scope(), "optimizers") {
			return
		}
		if v.Value() == nil || v.Value().DType() != dtypes.Float32 {
			return
		}
		snapshot[v.Scope()+"/"+v.Name()] = tensors.CopyFlatData[float32](v.Value())
	})
	return snapshot
}

func changedVariables(before, after map[string][]float32) int {
	var changed int
	for name, beforeValues := range before {
		afterValues, found := after[name]
		if !found {
			continue
		}
		for ii := range beforeValues {
			if beforeValues[ii] != afterValues[ii] {
				changed++
				break
			}
		}
	}
	return changed
}

func TestCompositeOptimizer_Dispatch(t *testing.T) {
	g := newTestGAN(t, "batch_size=8")
	ctx := g.model.Context()
	noise := []float32{0.1, 0.9, 0.4, 0.7, 0.2, 0.6, 0.3, 0.8}
	real := []float32{4.1, 3.9, 4.4, 3.7, 4.2, 4.6, 3.3, 4.8}

	// A generator-stage step must only update generator variables.
	generatorBefore := snapshotVariables(ctx, GeneratorScope)
	discriminatorBefore := snapshotVariables(ctx, DiscriminatorScope)
	_, err := g.TrainStep(stageBatch(StageGenerator, noise))
	require.NoError(t, err)
	assert.Greater(t, changedVariables(generatorBefore, snapshotVariables(ctx, GeneratorScope)), 0)
	assert.Zero(t, changedVariables(discriminatorBefore, snapshotVariables(ctx, DiscriminatorScope)))

	// A discriminator-stage step must only update discriminator variables.
	generatorBefore = snapshotVariables(ctx, GeneratorScope)
	discriminatorBefore = snapshotVariables(ctx, DiscriminatorScope)
	_, err = g.TrainStep(stageBatch(StageDiscriminatorReal, real))
	require.NoError(t, err)
	assert.Zero(t, changedVariables(generatorBefore, snapshotVariables(ctx, GeneratorScope)))
	assert.Greater(t, changedVariables(discriminatorBefore, snapshotVariables(ctx, DiscriminatorScope)), 0)

	// Same for the discriminator-fake stage, where gradients flow through the
	// generator but must not update it.
	generatorBefore = snapshotVariables(ctx, GeneratorScope)
	_, err = g.TrainStep(stageBatch(StageDiscriminatorFake, noise))
	require.NoError(t, err)
	assert.Zero(t, changedVariables(generatorBefore, snapshotVariables(ctx, GeneratorScope)))
}
