package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAutoKickSet(t *testing.T) {
	p := NewSessionPolicy()
	assert.False(t, p.IsAutoKick("u1"))
	assert.Empty(t, p.AutoKickList())

	p.AddAutoKick("u2")
	p.AddAutoKick("u1")
	p.AddAutoKick("u1")
	assert.True(t, p.IsAutoKick("u1"))
	assert.Equal(t, []string{"u1", "u2"}, p.AutoKickList())

	assert.True(t, p.RemoveAutoKick("u1"))
	assert.False(t, p.RemoveAutoKick("u1"))
	assert.False(t, p.IsAutoKick("u1"))
	assert.Equal(t, []string{"u2"}, p.AutoKickList())
}

func TestAutoKickDoesNotAffectListening(t *testing.T) {
	// Kick-on-join and frame admission are separate filters
	p := NewSessionPolicy()
	p.AddAutoKick("u1")
	assert.True(t, p.Admits("u1"))
}
