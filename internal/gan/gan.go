// Package gan implements a toy generative-adversarial pair -- generator and
// discriminator -- trained against each other on GoMLX.
//
// The hard parts (autodiff, tensor math, graph execution) belong to GoMLX; this
// package is the adversarial glue: a composite model holding the two sub-models
// in one context, a composite optimizer dispatching updates on a per-batch
// "stage" tag, a cyclic three-stage dataset, and an epoch loop with callback
// hooks.
package gan

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/default"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/ganlab/internal/generics"
	"github.com/janpfeifer/ganlab/internal/parameters"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// Backend is a singleton, shared by every GAN instance.
	backend = sync.OnceValue(func() backends.Backend { return backends.New() })

	// muNewExec synchronizes executor creation.
	muNewExec sync.Mutex
)

// GAN wraps the composite model with everything needed to train and sample it:
// per-stage train-step executors, inference executors for generating samples
// and discriminating them, the composite optimizer and an optional checkpoint.
type GAN struct {
	model     *Model
	optimizer *CompositeOptimizer

	// Executors: one train step and one evaluation loss per stage.
	trainExecs, lossExecs map[Stage]*context.Exec

	generateExec, discriminateExec *context.Exec

	// checkpoint handler, if the model is being saved/loaded to/from disk.
	checkpoint        *checkpoints.Handler
	checkpointsToKeep int

	// Hyperparameters cached values: they are also set in the model context.
	batchSize int

	// muLearning "write" for training steps, "read" for inference.
	muLearning sync.RWMutex

	// muSave makes saving sequential.
	muSave sync.Mutex
}

// StepMetrics is what one training step reports back.
type StepMetrics struct {
	Stage Stage
	Loss  float32

	// Mean and stdev of the samples generated during the step.
	// Only set for StageGenerator.
	FakeMean, FakeStdev float32
}

// New creates a GAN configured by params. Besides the model hyperparameters
// (see NewModel for their defaults, and use "generator."/"discriminator."
// prefixes for per-sub-model overrides), it recognizes:
//
//   - "checkpoint": directory to save/load the model weights.
//   - "keep": number of older checkpoint copies to keep around (default 10).
//   - "help": list all hyperparameters and their defaults.
func New(params parameters.Params) (*GAN, error) {
	g := &GAN{
		model:      NewModel(),
		trainExecs: make(map[Stage]*context.Exec),
		lossExecs:  make(map[Stage]*context.Exec),
	}

	// Help if requested.
	if _, found := params["help"]; found {
		g.writeHyperparametersHelp()
		return nil, errors.New("hyperparameters help requested")
	}

	var err error
	g.checkpointsToKeep, err = parameters.PopParamOr(params, "keep", 10)
	if err != nil {
		return nil, err
	}
	filePath, _ := parameters.PopParamOr(params, "checkpoint", "")
	if filePath != "" {
		if err = g.createCheckpoint(filePath); err != nil {
			return nil, errors.WithMessagef(err, "failed to build checkpoint in path %s", filePath)
		}
	}

	// Create the backend.
	_ = backend()

	// Overwrite hyperparameters from given params.
	if err = extractParams(params, g.model.Context()); err != nil {
		return nil, err
	}
	g.batchSize = context.GetParamOr(g.model.Context(), "batch_size", 500)

	g.optimizer = NewCompositeOptimizer(g.model.Context())
	g.createExecutors()

	// Force creating/loading of variables without race conditions first.
	err = exceptions.TryCatch[error](func() {
		zeros := make([]float32, g.batchSize)
		_ = g.Generate(zeros)
		_ = g.Discriminate(zeros)
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to initialize model variables")
	}
	klog.V(1).Infof("Created %s", g)
	return g, nil
}

func (g *GAN) createExecutors() {
	muNewExec.Lock()
	defer muNewExec.Unlock()
	ctx := g.model.Context()
	inferenceCtx := ctx.Checked(false)

	g.generateExec = context.NewExec(backend(), inferenceCtx,
		func(ctx *context.Context, inputs []*graph.Node) *graph.Node {
			return g.model.GeneratorGraph(ctx, inputs[0])
		})
	g.discriminateExec = context.NewExec(backend(), inferenceCtx,
		func(ctx *context.Context, inputs []*graph.Node) *graph.Node {
			// Reduce the [1, 1] logit to a scalar probability.
			return graph.Reshape(graph.Sigmoid(g.model.DiscriminatorGraph(ctx, inputs[0])))
		})

	for _, stage := range StageCycle {
		g.lossExecs[stage] = context.NewExec(backend(), inferenceCtx,
			func(ctx *context.Context, inputs []*graph.Node) *graph.Node {
				return g.model.LossGraph(ctx, stage, inputs[0])
			})
		g.trainExecs[stage] = context.NewExec(backend(), ctx,
			func(ctx *context.Context, inputs []*graph.Node) []*graph.Node {
				batch := inputs[0]
				stepGraph := batch.Graph()
				ctx.SetTraining(stepGraph, true)
				var loss, fakeMean, fakeStdev *graph.Node
				if stage == StageGenerator {
					loss, fakeMean, fakeStdev = g.model.GeneratorLossAndStatsGraph(ctx, batch)
				} else {
					loss = g.model.LossGraph(ctx, stage, batch)
				}
				g.optimizer.SetStage(stage)
				g.optimizer.UpdateGraph(ctx, stepGraph, loss)
				train.ExecPerStepUpdateGraphFn(ctx, stepGraph)
				if stage == StageGenerator {
					return []*graph.Node{loss, fakeMean, fakeStdev}
				}
				return []*graph.Node{loss}
			})
	}
}

// String implements fmt.Stringer.
func (g *GAN) String() string {
	if g == nil {
		return "<nil>[GoMLX]"
	}
	if g.checkpoint == nil || g.checkpoint.Dir() == "" {
		return fmt.Sprintf("GAN[GoMLX/%s]", backend().Name())
	}
	return fmt.Sprintf("GAN[GoMLX/%s]@%s", backend().Name(), g.checkpoint.Dir())
}

// BatchSize returns the configured number of values per sample batch.
func (g *GAN) BatchSize() int {
	return g.batchSize
}

// TrainStep runs one training step on the given batch: it checks the batch is not
// mixed, selects the stage on the composite optimizer and dispatches to the
// matching train-step executor.
func (g *GAN) TrainStep(batch *Batch) (StepMetrics, error) {
	stage, err := batch.Stage()
	if err != nil {
		return StepMetrics{}, err
	}
	inputs := g.donatedInputs(batch.Values)

	g.muLearning.Lock()
	defer g.muLearning.Unlock()
	g.optimizer.SetStage(stage)
	var outputs []*tensors.Tensor
	err = exceptions.TryCatch[error](func() {
		outputs = g.trainExecs[stage].Call(inputs...)
	})
	if err != nil {
		return StepMetrics{}, errors.WithMessagef(err, "train step failed for stage %q", stage)
	}
	metrics := StepMetrics{Stage: stage, Loss: tensors.ToScalar[float32](outputs[0])}
	if stage == StageGenerator {
		metrics.FakeMean = tensors.ToScalar[float32](outputs[1])
		metrics.FakeStdev = tensors.ToScalar[float32](outputs[2])
	}
	return metrics, nil
}

// EvalLoss returns the loss of the batch's stage without updating any weights.
func (g *GAN) EvalLoss(batch *Batch) (float32, error) {
	stage, err := batch.Stage()
	if err != nil {
		return 0, err
	}
	inputs := g.donatedInputs(batch.Values)
	g.muLearning.RLock()
	defer g.muLearning.RUnlock()
	var lossT *tensors.Tensor
	err = exceptions.TryCatch[error](func() {
		lossT = g.lossExecs[stage].Call(inputs...)[0]
	})
	if err != nil {
		return 0, errors.WithMessagef(err, "loss evaluation failed for stage %q", stage)
	}
	return tensors.ToScalar[float32](lossT), nil
}

// Generate transforms noise values into synthetic samples.
func (g *GAN) Generate(noise []float32) []float32 {
	inputs := g.donatedInputs(noise)
	g.muLearning.RLock()
	defer g.muLearning.RUnlock()
	fakeT := g.generateExec.Call(inputs...)[0]
	return tensors.CopyFlatData[float32](fakeT)
}

// Discriminate returns the probability the discriminator assigns to the whole
// sample vector being real.
func (g *GAN) Discriminate(sample []float32) float32 {
	inputs := g.donatedInputs(sample)
	g.muLearning.RLock()
	defer g.muLearning.RUnlock()
	probT := g.discriminateExec.Call(inputs...)[0]
	return tensors.ToScalar[float32](probT)
}

// Save saves the model to its checkpoint directory, if one is configured.
func (g *GAN) Save() error {
	if g.checkpoint == nil {
		klog.Warningf("This GAN is not associated to a checkpoint directory, not saving")
		return nil
	}
	g.muSave.Lock()
	defer g.muSave.Unlock()
	return g.checkpoint.Save()
}

// Finalize frees the model resources, leaving the GAN in an invalid state.
func (g *GAN) Finalize() {
	g.generateExec.Finalize()
	g.discriminateExec.Finalize()
	for _, stage := range StageCycle {
		g.trainExecs[stage].Finalize()
		g.lossExecs[stage].Finalize()
	}
	g.model.Context().Finalize()
}

func (g *GAN) donatedInputs(values []float32) []any {
	inputs := g.model.CreateBatchInputs(values)
	return generics.SliceMap(inputs, func(t *tensors.Tensor) any {
		return graph.DonateTensorBuffer(t, backend())
	})
}

func (g *GAN) createCheckpoint(filePath string) error {
	checkpoint, err := checkpoints.
		Build(g.model.Context()).
		Immediate().
		Dir(filePath).
		Keep(g.checkpointsToKeep).
		Done()
	if err != nil {
		return err
	}
	g.checkpoint = checkpoint
	return nil
}

// writeHyperparametersHelp enumerates all the hyperparameters set in the context.
func (g *GAN) writeHyperparametersHelp() {
	buf := &bytes.Buffer{}
	_, _ = fmt.Fprintf(buf, "GAN parameters:\n")
	_, _ = fmt.Fprintf(buf, "\tcheckpoint=<path> to save/load the model at the given directory\n")
	_, _ = fmt.Fprintf(buf, "\t<key>=<value> to override a root hyperparameter\n")
	_, _ = fmt.Fprintf(buf, "\t%s.<key>=<value> or %s.<key>=<value> for per-sub-model overrides\n",
		GeneratorScope, DiscriminatorScope)
	g.model.Context().EnumerateParams(func(scope, key string, value any) {
		if scope != context.RootScope {
			return
		}
		_, _ = fmt.Fprintf(buf, "\t%q: default value is %v\n", key, value)
	})
	klog.Info(buf)
}

// extractParams writes the given params as context hyperparameters. Keys prefixed
// with "generator." or "discriminator." are set on the sub-model scope, everything
// else on the root scope. Unknown keys are a configuration error.
func extractParams(params parameters.Params, ctx *context.Context) error {
	rootDefaults := make(map[string]any)
	ctx.EnumerateParams(func(scope, key string, value any) {
		if scope == context.RootScope {
			rootDefaults[key] = value
		}
	})

	for name := range params {
		scope, key := parameters.SplitScope(name)
		target := ctx
		switch scope {
		case "":
			// Root scope.
		case GeneratorScope, DiscriminatorScope:
			target = ctx.In(scope)
		default:
			return errors.Errorf("unknown scope in parameter %q: only %q and %q sub-model scopes are accepted",
				name, GeneratorScope, DiscriminatorScope)
		}
		defaultValue, found := rootDefaults[key]
		if !found {
			return errors.Errorf("unknown hyperparameter %q", name)
		}
		switch defaultValue := defaultValue.(type) {
		case string:
			value, _ := parameters.PopParamOr(params, name, defaultValue)
			target.SetParam(key, value)
		case int:
			value, err := parameters.PopParamOr(params, name, defaultValue)
			if err != nil {
				return errors.WithMessagef(err, "parsing %q (int)", name)
			}
			target.SetParam(key, value)
		case float64:
			value, err := parameters.PopParamOr(params, name, defaultValue)
			if err != nil {
				return errors.WithMessagef(err, "parsing %q (float64)", name)
			}
			target.SetParam(key, value)
		case float32:
			value, err := parameters.PopParamOr(params, name, defaultValue)
			if err != nil {
				return errors.WithMessagef(err, "parsing %q (float32)", name)
			}
			target.SetParam(key, value)
		case bool:
			value, err := parameters.PopParamOr(params, name, defaultValue)
			if err != nil {
				return errors.WithMessagef(err, "parsing %q (bool)", name)
			}
			target.SetParam(key, value)
		default:
			return errors.Errorf("hyperparameter %q is of unsupported type %T", name, defaultValue)
		}
	}
	return nil
}
