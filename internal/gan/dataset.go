package gan

import (
	"io"

	"github.com/janpfeifer/ganlab/internal/generics"
	"github.com/janpfeifer/ganlab/internal/samplers"
	"github.com/pkg/errors"
)

// Batch is a tagged array of scalar values: each value carries the stage it was
// sampled for. Batches are produced fresh, consumed once and discarded.
type Batch struct {
	Values []float32
	Stages []Stage
}

// Stage returns the stage shared by every value of the batch.
//
// A batch mixing more than one distinct stage is an unrecoverable configuration
// error: training on it would update the wrong sub-model.
func (b *Batch) Stage() (Stage, error) {
	if len(b.Values) == 0 || len(b.Stages) != len(b.Values) {
		return StageNone, errors.Errorf("malformed batch: %d values, %d stage tags", len(b.Values), len(b.Stages))
	}
	if len(generics.SetWith(b.Stages...)) != 1 {
		return StageNone, errors.Errorf("mixed batch: more than one distinct stage in %v", b.Stages)
	}
	return b.Stages[0], nil
}

// Dataset is the cyclic data source for adversarial training. Per epoch it yields
// batchesPerEpoch cycles of StageCycle (real -> fake -> generator), drawing real
// samples for the discriminator-real stage and noise for the other two.
//
// It follows the Name/Yield/Reset shape of GoMLX datasets: Yield returns io.EOF at
// the end of an epoch, and Reset rewinds it. The cycle position is a plain counter,
// nothing else drives the stage transitions.
type Dataset struct {
	real, noise samplers.Sampler

	batchSize, batchesPerEpoch int
	pos                        int
}

// NewDataset creates a cyclic dataset: batchSize values per batch,
// len(StageCycle)*batchesPerEpoch batches per epoch.
func NewDataset(real, noise samplers.Sampler, batchSize, batchesPerEpoch int) *Dataset {
	return &Dataset{
		real:            real,
		noise:           noise,
		batchSize:       batchSize,
		batchesPerEpoch: batchesPerEpoch,
	}
}

// Name of the dataset.
func (ds *Dataset) Name() string { return "gan_stage_cycle" }

// EpochSize returns the number of batches yielded per epoch.
func (ds *Dataset) EpochSize() int { return len(StageCycle) * ds.batchesPerEpoch }

// Yield returns the next batch of the epoch, or io.EOF when the epoch is exhausted.
func (ds *Dataset) Yield() (*Batch, error) {
	if ds.pos >= ds.EpochSize() {
		return nil, io.EOF
	}
	stage := StageCycle[ds.pos%len(StageCycle)]
	ds.pos++

	sampler := ds.noise
	if stage == StageDiscriminatorReal {
		sampler = ds.real
	}
	batch := &Batch{
		Values: sampler.Sample(ds.batchSize),
		Stages: make([]Stage, ds.batchSize),
	}
	for ii := range batch.Stages {
		batch.Stages[ii] = stage
	}
	return batch, nil
}

// Reset rewinds the dataset to the start of an epoch.
func (ds *Dataset) Reset() { ds.pos = 0 }
