package gan

import "fmt"

// Metrics accumulates per-epoch training metrics: losses summed per stage, and
// the mean/stdev of generated samples averaged over the generator batches.
type Metrics struct {
	DiscriminatorRealLoss float32
	DiscriminatorFakeLoss float32
	GeneratorLoss         float32

	sumFakeMean, sumFakeStdev float32
	generatorBatches          int
}

// Reset clears the metrics, called at every epoch start.
func (m *Metrics) Reset() {
	*m = Metrics{}
}

// Accumulate folds one training step result into the epoch metrics.
func (m *Metrics) Accumulate(step StepMetrics) {
	switch step.Stage {
	case StageDiscriminatorReal:
		m.DiscriminatorRealLoss += step.Loss
	case StageDiscriminatorFake:
		m.DiscriminatorFakeLoss += step.Loss
	case StageGenerator:
		m.GeneratorLoss += step.Loss
		m.sumFakeMean += step.FakeMean
		m.sumFakeStdev += step.FakeStdev
		m.generatorBatches++
	}
}

// FakeMean returns the mean of the generated samples, averaged over the epoch's
// generator batches.
func (m *Metrics) FakeMean() float32 {
	return m.sumFakeMean / float32(max(m.generatorBatches, 1))
}

// FakeStdev returns the stdev of the generated samples, averaged over the epoch's
// generator batches.
func (m *Metrics) FakeStdev() float32 {
	return m.sumFakeStdev / float32(max(m.generatorBatches, 1))
}

// String implements fmt.Stringer.
func (m *Metrics) String() string {
	return fmt.Sprintf("drl=%.4g, dfl=%.4g, gl=%.4g, mean=%.4g, stdev=%.4g",
		m.DiscriminatorRealLoss, m.DiscriminatorFakeLoss, m.GeneratorLoss,
		m.FakeMean(), m.FakeStdev())
}
