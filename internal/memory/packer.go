package memory

import "unicode/utf8"

// Pack walks candidates in order and keeps them while the running character
// count stays within maxChars. A first candidate that alone exceeds the
// budget is cut to exactly maxChars; any later overflow ends packing.
func Pack(candidates []Candidate, maxChars int) []Message {
	if maxChars <= 0 || len(candidates) == 0 {
		return nil
	}
	out := make([]Message, 0, len(candidates))
	used := 0
	for _, c := range candidates {
		n := utf8.RuneCountInString(c.Record.Text)
		if used+n > maxChars {
			if used == 0 {
				out = append(out, Message{Role: c.Record.Role, Content: truncateRunes(c.Record.Text, maxChars)})
			}
			break
		}
		out = append(out, c.Record.Message())
		used += n
	}
	return out
}

// MessageChars counts runes across message contents.
func MessageChars(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += utf8.RuneCountInString(m.Content)
	}
	return total
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
