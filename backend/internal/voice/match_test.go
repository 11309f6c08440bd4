package voice

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func member(username, nick string) *discordgo.Member {
	return &discordgo.Member{
		Nick: nick,
		User: &discordgo.User{ID: "id-" + username, Username: username},
	}
}

func TestMatchMemberSubstring(t *testing.T) {
	members := []*discordgo.Member{
		member("bobross", ""),
		member("alice", ""),
	}

	m := MatchMember(members, "bob")
	require.NotNil(t, m)
	assert.Equal(t, "bobross", m.User.Username)

	m = MatchMember(members, "ALICE")
	require.NotNil(t, m)
	assert.Equal(t, "alice", m.User.Username)

	assert.Nil(t, MatchMember(members, "charlie"))
}

func TestMatchMemberPrefersNickname(t *testing.T) {
	members := []*discordgo.Member{member("xx_gamer_xx", "Bob")}
	m := MatchMember(members, "bob")
	require.NotNil(t, m)
	assert.Equal(t, "Bob", DisplayName(m))
}

func TestMatchMemberStripsFillerWords(t *testing.T) {
	members := []*discordgo.Member{member("bob", "")}
	m := MatchMember(members, "the user bob")
	require.NotNil(t, m)
	assert.Equal(t, "bob", m.User.Username)
}

func TestMatchMemberAmbiguityPicksShortestDisplayName(t *testing.T) {
	members := []*discordgo.Member{
		member("bobby_tables_junior", ""),
		member("bob", ""),
		member("bobcat", ""),
	}
	m := MatchMember(members, "bob")
	require.NotNil(t, m)
	assert.Equal(t, "bob", m.User.Username)
}

func TestMatchMemberEmptyQuery(t *testing.T) {
	members := []*discordgo.Member{member("bob", "")}
	assert.Nil(t, MatchMember(members, ""))
	assert.Nil(t, MatchMember(members, "the user"))
	assert.Nil(t, MatchMember(nil, "bob"))
}
