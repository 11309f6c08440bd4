package voice

import (
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var fillerWords = map[string]struct{}{
	"the":    {},
	"user":   {},
	"member": {},
}

// DisplayName resolves the name a member shows in the channel list.
func DisplayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User != nil {
		if m.User.GlobalName != "" {
			return m.User.GlobalName
		}
		return m.User.Username
	}
	return ""
}

// MatchMember fuzzy-matches a spoken name against members: filler words
// are stripped from the query, then a case-insensitive substring match
// runs over display name and username. Ambiguity resolves to the member
// with the shortest display name, the closest match for a short spoken
// fragment.
func MatchMember(members []*discordgo.Member, query string) *discordgo.Member {
	needle := normalizeQuery(query)
	if needle == "" {
		return nil
	}

	var matches []*discordgo.Member
	for _, m := range members {
		display := strings.ToLower(DisplayName(m))
		username := ""
		if m.User != nil {
			username = strings.ToLower(m.User.Username)
		}
		if strings.Contains(display, needle) || strings.Contains(username, needle) {
			matches = append(matches, m)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return len(DisplayName(matches[i])) < len(DisplayName(matches[j]))
	})
	return matches[0]
}

func normalizeQuery(query string) string {
	var kept []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		if _, filler := fillerWords[f]; filler {
			continue
		}
		kept = append(kept, f)
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}
