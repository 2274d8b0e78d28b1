package gan

import (
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/train/optimizers"
)

// CompositeOptimizer holds one sub-optimizer per sub-model and a mutable current
// stage selecting which of them the next update dispatches to.
//
// The stage must be set to the stage that produced the just-built loss: a mismatch
// would update the wrong sub-model and corrupt training silently. Dispatching is
// enforced through variable trainability: before delegating the update, only the
// variables owned by the sub-model being trained are marked trainable, so
// gradients still flow through the other sub-model but never update it.
type CompositeOptimizer struct {
	ctx *context.Context

	generator, discriminator optimizers.Interface

	stage Stage
}

var _ optimizers.Interface = (*CompositeOptimizer)(nil)

// NewCompositeOptimizer builds the two sub-optimizers from the hyperparameters of
// their sub-model scopes -- they inherit the root "optimizer" and "learning_rate"
// parameters, which can be overridden per scope.
func NewCompositeOptimizer(ctx *context.Context) *CompositeOptimizer {
	return &CompositeOptimizer{
		ctx:           ctx,
		generator:     optimizers.FromContext(ctx.In(GeneratorScope)),
		discriminator: optimizers.FromContext(ctx.In(DiscriminatorScope)),
		stage:         StageNone,
	}
}

// SetStage selects the sub-optimizer the next UpdateGraph dispatches to.
// It must be called before each update, with the stage that produced the loss.
func (o *CompositeOptimizer) SetStage(stage Stage) {
	o.stage = stage
}

// Stage returns the currently selected stage.
func (o *CompositeOptimizer) Stage() Stage {
	return o.stage
}

// UpdateGraph implements optimizers.Interface: it routes the update of the
// just-built loss to the sub-optimizer selected by the current stage.
func (o *CompositeOptimizer) UpdateGraph(ctx *context.Context, g *graph.Graph, loss *graph.Node) {
	o.setStageTrainability()
	switch {
	case o.stage.IsDiscriminator():
		o.discriminator.UpdateGraph(ctx, g, loss)
	case o.stage == StageGenerator:
		o.generator.UpdateGraph(ctx, g, loss)
	default:
		exceptions.Panicf("unknown stage %q: CompositeOptimizer.SetStage must be called before each update", o.stage)
	}
}

// Clear deletes the temporary variables of both sub-optimizers.
func (o *CompositeOptimizer) Clear(ctx *context.Context) {
	o.generator.Clear(ctx)
	o.discriminator.Clear(ctx)
}

// setStageTrainability marks as trainable only the variables of the sub-model being
// trained in the current stage. Optimizer slot variables (kept under "optimizers"
// scopes) manage their own trainability and are left untouched.
func (o *CompositeOptimizer) setStageTrainability() {
	trainGenerator := o.stage == StageGenerator
	generatorPrefix := context.RootScope + GeneratorScope
	discriminatorPrefix := context.RootScope + DiscriminatorScope
	o.ctx.EnumerateVariables(func(v *context.Variable) {
		scope := v.Scope()
		if strings.Contains(scope, "optimizers") {
			return
		}
		switch {
		case strings.HasPrefix(scope, generatorPrefix):
			v.Trainable = trainGenerator
		case strings.HasPrefix(scope, discriminatorPrefix):
			v.Trainable = !trainGenerator
		}
	})
}
