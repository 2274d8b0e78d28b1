package gan

import (
	"github.com/pkg/errors"
)

// Stage identifies which of the three adversarial training sub-steps a batch belongs to.
//
// Every training batch is tagged with exactly one stage, and the composite optimizer
// dispatches to the matching sub-optimizer. See CompositeOptimizer.
type Stage int

const (
	StageNone Stage = iota

	// StageDiscriminatorReal trains the discriminator to score real samples as real.
	StageDiscriminatorReal

	// StageDiscriminatorFake trains the discriminator to score generated samples as fake.
	StageDiscriminatorFake

	// StageGenerator trains the generator to fool the discriminator.
	StageGenerator
)

// StageCycle is the fixed order of stages within one training cycle: each "batch" of the
// configuration actually yields one batch per stage, in this order.
var StageCycle = []Stage{StageDiscriminatorReal, StageDiscriminatorFake, StageGenerator}

var stageToString = map[Stage]string{
	StageNone:              "none",
	StageDiscriminatorReal: "discriminator_real",
	StageDiscriminatorFake: "discriminator_fake",
	StageGenerator:         "generator",
}

// String implements fmt.Stringer.
func (s Stage) String() string {
	if name, found := stageToString[s]; found {
		return name
	}
	return "invalid"
}

// IsDiscriminator returns whether the stage updates the discriminator sub-model.
func (s Stage) IsDiscriminator() bool {
	return s == StageDiscriminatorReal || s == StageDiscriminatorFake
}

// StageFromString parses a stage name, the inverse of Stage.String.
func StageFromString(name string) (Stage, error) {
	for stage, stageName := range stageToString {
		if name == stageName {
			return stage, nil
		}
	}
	return StageNone, errors.Errorf("unknown stage %q", name)
}
