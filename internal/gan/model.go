package gan

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	fnnLayer "github.com/gomlx/gomlx/ml/layers/fnn"
	"github.com/gomlx/gomlx/ml/layers/regularizers"
	"github.com/gomlx/gomlx/ml/train/losses"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
)

// Scopes owning the two sub-models inside the shared context. They are the
// "parameter ownership tags" the composite optimizer routes on.
const (
	GeneratorScope     = "generator"
	DiscriminatorScope = "discriminator"
)

// Model is the composite adversarial model: a generator and a discriminator
// sharing one context, each owning the variables under its scope.
//
// The generator maps uniform noise, one scalar at a time, to a synthetic sample.
// The discriminator scores a whole sample vector (all batch values together) as
// a single example, by default after reducing it to its [mean, stdev] moments.
type Model struct {
	ctx *context.Context
}

// NewModel creates a composite model with a fresh context, initialized with
// hyperparameters set to their defaults.
func NewModel() *Model {
	m := &Model{ctx: context.New()}
	m.ctx.RngStateReset()
	m.ctx.SetParams(map[string]any{
		// Number of scalar values per sample batch.
		"batch_size": 500,

		// Discriminator preprocessing: "moments" reduces the sample vector to its
		// [mean, stdev] pair, "none" feeds the raw vector.
		"preprocessing": "moments",

		optimizers.ParamOptimizer:    "sgd",
		optimizers.ParamLearningRate: 0.05,
		activations.ParamActivation:  "sigmoid",
		layers.ParamDropoutRate:      0.0,
		regularizers.ParamL2:         0.0,
		regularizers.ParamL1:         0.0,

		// Sub-network parameters, shared defaults for both FNNs.
		fnnLayer.ParamNumHiddenLayers: 1,
		fnnLayer.ParamNumHiddenNodes:  5,
		fnnLayer.ParamResidual:        false,
		fnnLayer.ParamNormalization:   "none",
	})
	m.ctx = m.ctx.Checked(false)
	return m
}

// Context used by the model: with both its weights and hyperparameters.
func (m *Model) Context() *context.Context {
	return m.ctx
}

// CreateBatchInputs converts a batch of scalar values to the input tensor,
// shaped [len(values), 1].
func (m *Model) CreateBatchInputs(values []float32) []*tensors.Tensor {
	batch := tensors.FromShape(shapes.Make(dtypes.Float32, len(values), 1))
	tensors.MutableFlatData(batch, func(flat []float32) {
		copy(flat, values)
	})
	return []*tensors.Tensor{batch}
}

// GeneratorGraph maps noise values shaped [n, 1] to synthetic samples [n, 1].
func (m *Model) GeneratorGraph(ctx *context.Context, noise *Node) *Node {
	samples := fnnLayer.New(ctx.In(GeneratorScope), noise, 1).Done()
	samples.AssertDims(noise.Shape().Dim(0), 1)
	return samples
}

// DiscriminatorGraph scores how "real" a whole sample vector [n, 1] looks.
// It returns the logit of the "real" probability, shaped [1, 1].
func (m *Model) DiscriminatorGraph(ctx *context.Context, sample *Node) *Node {
	var features *Node
	switch preprocessing := context.GetParamOr(ctx, "preprocessing", "moments"); preprocessing {
	case "moments":
		features = momentsGraph(sample)
	case "none":
		features = Reshape(sample, 1, -1)
	default:
		exceptions.Panicf("unknown \"preprocessing\" %q: only \"moments\" and \"none\" are supported", preprocessing)
	}
	logit := fnnLayer.New(ctx.In(DiscriminatorScope), features, 1).Done()
	logit.AssertDims(1, 1)
	return logit
}

// momentsGraph reduces a sample vector to its first two moments, shaped [1, 2].
func momentsGraph(sample *Node) *Node {
	mean := ReduceAllMean(sample)
	centered := Sub(sample, mean)
	stdev := Sqrt(ReduceAllMean(Square(centered)))
	return Concatenate([]*Node{Reshape(mean, 1, 1), Reshape(stdev, 1, 1)}, -1)
}

// LossGraph builds the scalar loss of the given stage for one batch [n, 1]:
// real values for StageDiscriminatorReal, noise for the other two stages.
func (m *Model) LossGraph(ctx *context.Context, stage Stage, batch *Node) *Node {
	switch stage {
	case StageDiscriminatorReal:
		// Real data, the discriminator should predict 1.
		return sigmoidLoss(m.DiscriminatorGraph(ctx, batch), 1)
	case StageDiscriminatorFake:
		// Generated data, the discriminator should predict 0.
		fake := m.GeneratorGraph(ctx, batch)
		return sigmoidLoss(m.DiscriminatorGraph(ctx, fake), 0)
	case StageGenerator:
		loss, _, _ := m.GeneratorLossAndStatsGraph(ctx, batch)
		return loss
	default:
		exceptions.Panicf("cannot build a loss for stage %q", stage)
	}
	return nil
}

// GeneratorLossAndStatsGraph builds the generator-stage loss -- generate fake data
// and try to fool the discriminator -- plus the mean and stdev of the generated
// samples, reported as training metrics.
func (m *Model) GeneratorLossAndStatsGraph(ctx *context.Context, noise *Node) (loss, fakeMean, fakeStdev *Node) {
	fake := m.GeneratorGraph(ctx, noise)
	loss = sigmoidLoss(m.DiscriminatorGraph(ctx, fake), 1)
	fakeMean = ReduceAllMean(fake)
	fakeStdev = Sqrt(ReduceAllMean(Square(Sub(fake, fakeMean))))
	return
}

// sigmoidLoss is the binary cross-entropy of the discriminator logit against a
// constant 0 ("fake") or 1 ("real") label.
func sigmoidLoss(logit *Node, label float64) *Node {
	labels := MulScalar(OnesLike(logit), label)
	loss := losses.BinaryCrossentropyLogits([]*Node{labels}, []*Node{logit})
	if !loss.IsScalar() {
		loss = ReduceAllMean(loss)
	}
	return loss
}
