package voice

import (
	"regexp"
	"strconv"
	"strings"
)

// CommandKind is the closed set of voice command intents.
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandLeave
	CommandChangeVoice
	CommandMute
	CommandUnmute
	CommandKick
	CommandTimeout
)

// Command is the parsed intent of a wake-word utterance. Target and
// Minutes are only meaningful for the member-action kinds.
type Command struct {
	Kind    CommandKind
	Target  string
	Minutes int
}

var wakeWords = []string{"manga", "منجا"}

var (
	leaveRe   = regexp.MustCompile(`(?i)(^|\s)(leave|disconnect|dc|exit|bye)(\s|$|[,.!?])`)
	unmuteRe  = regexp.MustCompile(`(?i)^unmute\s+(.+)$`)
	muteRe    = regexp.MustCompile(`(?i)^mute\s+(.+)$`)
	kickRe    = regexp.MustCompile(`(?i)^kick\s+(.+)$`)
	timeoutRe = regexp.MustCompile(`(?i)^timeout\s+(.+?)(?:\s+(\d+))?$`)
)

// HasWakeWord reports whether the trigger phrase appears at the start of
// the text or as a standalone token. Substring matches inside longer
// words do not count.
func HasWakeWord(text string) bool {
	for _, token := range tokenize(text) {
		for _, w := range wakeWords {
			if token == w {
				return true
			}
		}
	}
	return false
}

// StripWakeWord returns the text after the first trigger token, trimmed
// of surrounding punctuation. Words before the trigger are address filler
// ("hey manga ...") and never part of the command.
func StripWakeWord(text string) string {
	tokens := strings.Fields(text)
	for i, raw := range tokens {
		token := strings.ToLower(strings.Trim(raw, ",.!?;:؟،"))
		for _, w := range wakeWords {
			if token == w {
				out := strings.Join(tokens[i+1:], " ")
				return strings.TrimLeft(strings.TrimSpace(out), ",.!?;:؟، ")
			}
		}
	}
	return strings.TrimSpace(text)
}

// Parse matches the trigger-stripped remainder against the fixed command
// grammars, first match wins. CommandNone routes the text to the chat
// responder instead.
func Parse(text string, defaultMinutes, capMinutes int) Command {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Command{Kind: CommandNone}
	}

	if leaveRe.MatchString(trimmed) {
		return Command{Kind: CommandLeave}
	}

	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "change voice") || lower == "voice" {
		return Command{Kind: CommandChangeVoice}
	}

	if m := unmuteRe.FindStringSubmatch(trimmed); m != nil {
		return Command{Kind: CommandUnmute, Target: cleanTarget(m[1])}
	}
	if m := muteRe.FindStringSubmatch(trimmed); m != nil {
		return Command{Kind: CommandMute, Target: cleanTarget(m[1])}
	}
	if m := kickRe.FindStringSubmatch(trimmed); m != nil {
		return Command{Kind: CommandKick, Target: cleanTarget(m[1])}
	}
	if m := timeoutRe.FindStringSubmatch(trimmed); m != nil {
		minutes := defaultMinutes
		if m[2] != "" {
			if v, err := strconv.Atoi(m[2]); err == nil && v > 0 {
				minutes = v
			}
		}
		if minutes > capMinutes {
			minutes = capMinutes
		}
		return Command{Kind: CommandTimeout, Target: cleanTarget(m[1]), Minutes: minutes}
	}

	return Command{Kind: CommandNone}
}

func cleanTarget(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ",.!?")
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, strings.Trim(f, ",.!?;:؟،\"'"))
	}
	return tokens
}
