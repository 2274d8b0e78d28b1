package gan

import (
	"fmt"
	"testing"

	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/ganlab/internal/generics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_CreateBatchInputs(t *testing.T) {
	m := NewModel()
	inputs := m.CreateBatchInputs([]float32{1, 2, 3})
	require.Len(t, inputs, 1)
	batch := inputs[0]
	batch.Shape().AssertDims(3, 1)
	assert.Equal(t, []float32{1, 2, 3}, tensors.CopyFlatData[float32](batch))
}

func TestMomentsGraph(t *testing.T) {
	m := NewModel()
	backend := graphtest.BuildTestBackend()
	inputs := m.CreateBatchInputs([]float32{1, 2, 3, 4})
	inputsAny := generics.SliceMap(inputs, func(t *tensors.Tensor) any { return t })
	momentsT := context.ExecOnce(backend, m.Context(), func(ctx *context.Context, inputs []*graph.Node) *graph.Node {
		return momentsGraph(inputs[0])
	}, inputsAny...)
	fmt.Printf("Moments: %s\n", momentsT)

	momentsT.Shape().AssertDims(1, 2)
	moments := tensors.CopyFlatData[float32](momentsT)
	assert.InDelta(t, 2.5, moments[0], 1e-5)          // Mean of {1, 2, 3, 4}.
	assert.InDelta(t, 1.1180339887, moments[1], 1e-5) // Population stdev of {1, 2, 3, 4}.
}

func TestModel_ForwardGraphs(t *testing.T) {
	m := NewModel()
	backend := graphtest.BuildTestBackend()
	inputs := m.CreateBatchInputs(make([]float32, 8))
	inputsAny := generics.SliceMap(inputs, func(t *tensors.Tensor) any { return t })

	outputs := context.ExecOnceN(backend, m.Context(), func(ctx *context.Context, inputs []*graph.Node) []*graph.Node {
		fake := m.GeneratorGraph(ctx, inputs[0])
		logit := m.DiscriminatorGraph(ctx, inputs[0])
		return []*graph.Node{fake, logit}
	}, inputsAny...)
	fakeT, logitT := outputs[0], outputs[1]
	fmt.Printf("Generated: %s\n", fakeT)
	fmt.Printf("Logit: %s\n", logitT)

	// One generated sample per noise value; one logit for the whole sample vector.
	fakeT.Shape().AssertDims(8, 1)
	logitT.Shape().AssertDims(1, 1)
}

func TestModel_LossGraph(t *testing.T) {
	m := NewModel()
	backend := graphtest.BuildTestBackend()
	inputs := m.CreateBatchInputs([]float32{0.1, 0.5, 0.9, 0.3})
	inputsAny := generics.SliceMap(inputs, func(t *tensors.Tensor) any { return t })

	for _, stage := range StageCycle {
		lossT := context.ExecOnce(backend, m.Context(), func(ctx *context.Context, inputs []*graph.Node) *graph.Node {
			return m.LossGraph(ctx, stage, inputs[0])
		}, inputsAny...)
		fmt.Printf("Loss[%s]: %s\n", stage, lossT)
		lossT.Shape().AssertScalar()
		loss := tensors.ToScalar[float32](lossT)
		// Binary cross-entropy is non-negative.
		require.GreaterOrEqualf(t, loss, float32(0), "stage %s", stage)
	}
}
