package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasWakeWord(t *testing.T) {
	assert.True(t, HasWakeWord("manga mute bob"))
	assert.True(t, HasWakeWord("Manga, mute bob"))
	assert.True(t, HasWakeWord("hey manga what's up"))
	assert.True(t, HasWakeWord("منجا كيف الحال"))

	// Substring inside a longer word is not the trigger
	assert.False(t, HasWakeWord("I like managa"))
	assert.False(t, HasWakeWord("mangaka draw comics"))
	assert.False(t, HasWakeWord("hello there"))
	assert.False(t, HasWakeWord(""))
}

func TestStripWakeWord(t *testing.T) {
	assert.Equal(t, "mute bob", StripWakeWord("manga, mute bob"))
	assert.Equal(t, "mute bob", StripWakeWord("manga mute bob"))
	assert.Equal(t, "", StripWakeWord("manga"))
	assert.Equal(t, "", StripWakeWord("Manga!"))
	assert.Equal(t, "what's up", StripWakeWord("hey manga what's up"))
}

func TestParseLeaveVariants(t *testing.T) {
	for _, text := range []string{"leave", "please leave now", "disconnect", "dc", "exit", "bye bye"} {
		cmd := Parse(text, 5, 60)
		assert.Equal(t, CommandLeave, cmd.Kind, "input: %q", text)
	}
}

func TestParsePrecedenceOnStrippedRemainder(t *testing.T) {
	// The leave grammar runs on the stripped remainder, not the raw text:
	// words before the trigger never count
	stripped := StripWakeWord("leave please manga style")
	assert.Equal(t, "style", stripped)
	assert.Equal(t, CommandNone, Parse(stripped, 5, 60).Kind)

	// A genuine "manga leave" strips to "leave" and matches
	cmd := Parse(StripWakeWord("manga leave"), 5, 60)
	assert.Equal(t, CommandLeave, cmd.Kind)

	// No leave keyword anywhere falls through
	cmd = Parse("please manga style", 5, 60)
	assert.Equal(t, CommandNone, cmd.Kind)
}

func TestParseChangeVoice(t *testing.T) {
	assert.Equal(t, CommandChangeVoice, Parse("change voice", 5, 60).Kind)
	assert.Equal(t, CommandChangeVoice, Parse("please change voice now", 5, 60).Kind)
	assert.Equal(t, CommandChangeVoice, Parse("voice", 5, 60).Kind)
	assert.Equal(t, CommandNone, Parse("voices are cool", 5, 60).Kind)
}

func TestParseMemberCommands(t *testing.T) {
	cmd := Parse("mute bob", 5, 60)
	assert.Equal(t, CommandMute, cmd.Kind)
	assert.Equal(t, "bob", cmd.Target)

	cmd = Parse("unmute bob", 5, 60)
	assert.Equal(t, CommandUnmute, cmd.Kind)
	assert.Equal(t, "bob", cmd.Target)

	cmd = Parse("kick the noisy guy", 5, 60)
	assert.Equal(t, CommandKick, cmd.Kind)
	assert.Equal(t, "the noisy guy", cmd.Target)
}

func TestParseTimeoutMinutes(t *testing.T) {
	cmd := Parse("timeout bob", 5, 60)
	assert.Equal(t, CommandTimeout, cmd.Kind)
	assert.Equal(t, "bob", cmd.Target)
	assert.Equal(t, 5, cmd.Minutes)

	cmd = Parse("timeout bob 15", 5, 60)
	assert.Equal(t, 15, cmd.Minutes)
	assert.Equal(t, "bob", cmd.Target)

	// Cap applies
	cmd = Parse("timeout bob 500", 5, 60)
	assert.Equal(t, 60, cmd.Minutes)
}

func TestParseFallsThroughToChat(t *testing.T) {
	for _, text := range []string{"", "what's the weather", "tell me a joke"} {
		cmd := Parse(text, 5, 60)
		assert.Equal(t, CommandNone, cmd.Kind, "input: %q", text)
	}
}
