package gan

import (
	"context"
	"io"
	"slices"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Event identifies a point of the training loop that hooks can attach to.
type Event int

const (
	// EventEpochStart fires after the epoch metrics are reset, before any batch.
	EventEpochStart Event = iota

	// EventBatchEnd fires after each training step is accumulated into the metrics.
	EventBatchEnd

	// EventEpochEnd fires after the last batch of the epoch.
	EventEpochEnd

	numEvents
)

// HookFn is called with the trainer, so it can inspect the current epoch,
// global step and metrics.
type HookFn func(t *Trainer) error

type hook struct {
	name     string
	priority int
	fn       HookFn
}

// Trainer drives the adversarial training loop: per epoch it cycles the dataset
// through the three stages for the configured number of batches, dispatching each
// batch to the GAN's per-stage train step and firing the attached hooks.
type Trainer struct {
	gan     *GAN
	dataset *Dataset

	numEpochs int
	hooks     [numEvents][]hook

	// Epoch currently being trained, and the total train steps executed so far.
	Epoch      int
	GlobalStep int

	// Metrics of the current epoch.
	Metrics Metrics
}

// NewTrainer creates a training loop for the GAN over the cyclic dataset.
func NewTrainer(gan *GAN, dataset *Dataset, numEpochs int) *Trainer {
	return &Trainer{
		gan:       gan,
		dataset:   dataset,
		numEpochs: numEpochs,
	}
}

// GAN being trained.
func (t *Trainer) GAN() *GAN { return t.gan }

// OnEpochStart attaches a named hook to EventEpochStart. Hooks run in increasing
// priority order.
func (t *Trainer) OnEpochStart(name string, priority int, fn HookFn) {
	t.attach(EventEpochStart, name, priority, fn)
}

// OnBatchEnd attaches a named hook to EventBatchEnd.
func (t *Trainer) OnBatchEnd(name string, priority int, fn HookFn) {
	t.attach(EventBatchEnd, name, priority, fn)
}

// OnEpochEnd attaches a named hook to EventEpochEnd.
func (t *Trainer) OnEpochEnd(name string, priority int, fn HookFn) {
	t.attach(EventEpochEnd, name, priority, fn)
}

func (t *Trainer) attach(event Event, name string, priority int, fn HookFn) {
	t.hooks[event] = append(t.hooks[event], hook{name: name, priority: priority, fn: fn})
	slices.SortStableFunc(t.hooks[event], func(a, b hook) int { return a.priority - b.priority })
}

func (t *Trainer) callHooks(event Event) error {
	for _, h := range t.hooks[event] {
		if err := h.fn(t); err != nil {
			return errors.WithMessagef(err, "hook %q failed", h.name)
		}
	}
	return nil
}

// Train runs the configured number of epochs. It returns early with an error if
// the context is cancelled, a batch is malformed, a train step fails or a hook
// errors out.
func (t *Trainer) Train(ctx context.Context) error {
	for epoch := range t.numEpochs {
		t.Epoch = epoch
		t.Metrics.Reset()
		if err := t.callHooks(EventEpochStart); err != nil {
			return err
		}

		t.dataset.Reset()
		for {
			if err := ctx.Err(); err != nil {
				return errors.WithMessage(err, "training interrupted")
			}
			batch, err := t.dataset.Yield()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			step, err := t.gan.TrainStep(batch)
			if err != nil {
				return err
			}
			t.Metrics.Accumulate(step)
			t.GlobalStep++
			if err := t.callHooks(EventBatchEnd); err != nil {
				return err
			}
		}

		if err := t.callHooks(EventEpochEnd); err != nil {
			return err
		}
		klog.V(1).Infof("Epoch %d of %d: %s", epoch+1, t.numEpochs, &t.Metrics)
	}
	return nil
}
