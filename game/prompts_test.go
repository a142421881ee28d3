package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltInPromptLists(t *testing.T) {
	p := NewPromptProvider()
	for _, mode := range []Mode{ModeClassic, ModeLove, ModeWork} {
		prompts := p.PromptsForMode(mode)
		require.NotEmpty(t, prompts, "mode %s has no prompts", mode)
		for _, prompt := range prompts {
			assert.NotEmpty(t, prompt)
			assert.LessOrEqual(t, len([]rune(prompt)), MAX_TOPIC_RUNES)
		}
	}
	assert.Empty(t, p.PromptsForMode(ModeCustom), "custom rooms use player topics")
}

func TestPickPrompt(t *testing.T) {
	assert.Empty(t, pickPrompt(nil))
	assert.Equal(t, "only", pickPrompt([]string{"only"}))

	list := []string{"a", "b", "c"}
	for i := 0; i < 20; i++ {
		assert.Contains(t, list, pickPrompt(list))
	}
}
