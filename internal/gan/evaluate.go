package gan

import (
	"context"
	"sync"

	"github.com/chewxy/math32"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/ganlab/internal/samplers"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// EvaluateGenerated draws numBatches noise batches, runs them through the
// generator in parallel and returns the mean and stdev of all generated samples.
// A trained generator should approach the real distribution's moments.
func (g *GAN) EvaluateGenerated(ctx context.Context, noise samplers.Sampler, numBatches int) (mean, stdev float32, err error) {
	// Noise is sampled serially: samplers are not safe for concurrent use.
	noiseBatches := make([][]float32, numBatches)
	for ii := range noiseBatches {
		noiseBatches[ii] = noise.Sample(g.batchSize)
	}

	var muStats sync.Mutex
	var sum, sumSquares float32
	var count int
	group, groupCtx := errgroup.WithContext(ctx)
	for _, noiseBatch := range noiseBatches {
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			var fake []float32
			err := exceptions.TryCatch[error](func() { fake = g.Generate(noiseBatch) })
			if err != nil {
				return err
			}
			muStats.Lock()
			defer muStats.Unlock()
			for _, v := range fake {
				sum += v
				sumSquares += v * v
			}
			count += len(fake)
			return nil
		})
	}
	if err = group.Wait(); err != nil {
		return 0, 0, errors.WithMessage(err, "evaluation of generated samples failed")
	}
	if count == 0 {
		return 0, 0, errors.Errorf("no generated samples to evaluate (numBatches=%d)", numBatches)
	}
	mean = sum / float32(count)
	stdev = math32.Sqrt(sumSquares/float32(count) - mean*mean)
	return mean, stdev, nil
}
