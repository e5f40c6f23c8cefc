package session

import (
	"strings"
)

// Transcript formats the committed turns for persistence: the session
// date on the first line, then one speaker-labeled line per turn.
func Transcript(s *Session) string {
	var b strings.Builder
	b.WriteString(s.StartedAt.Format("2006-01-02"))
	for _, turn := range s.Turns {
		b.WriteString("\n")
		switch turn.Speaker {
		case SpeakerUser:
			b.WriteString("USER: ")
		case SpeakerTutor:
			b.WriteString("TUTOR: ")
		}
		b.WriteString(turn.Text)
	}
	return b.String()
}

// normalizeUtterance lowercases and strips surrounding punctuation from
// each token so "Stop." and "stop" compare equal.
func normalizeUtterance(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:¡¿\"'()[]{}")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// isStopUtterance reports whether the utterance begins with the stop
// keyword. The keyword wins ties: trailing words after it still end the
// session, but a keyword buried mid-sentence does not.
func isStopUtterance(text, keyword string) bool {
	tokens := normalizeUtterance(text)
	if len(tokens) == 0 {
		return false
	}
	return tokens[0] == strings.ToLower(keyword)
}
