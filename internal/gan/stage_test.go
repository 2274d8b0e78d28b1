package gan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageStrings(t *testing.T) {
	for _, stage := range StageCycle {
		parsed, err := StageFromString(stage.String())
		require.NoError(t, err)
		assert.Equal(t, stage, parsed)
	}

	_, err := StageFromString("discriminator")
	require.Error(t, err)

	assert.Equal(t, "invalid", Stage(99).String())
}

func TestStageCycle(t *testing.T) {
	// The cycle order is part of the training contract: the discriminator sees real
	// then fake data before the generator takes its turn.
	assert.Equal(t, []Stage{StageDiscriminatorReal, StageDiscriminatorFake, StageGenerator}, StageCycle)

	assert.True(t, StageDiscriminatorReal.IsDiscriminator())
	assert.True(t, StageDiscriminatorFake.IsDiscriminator())
	assert.False(t, StageGenerator.IsDiscriminator())
	assert.False(t, StageNone.IsDiscriminator())
}
