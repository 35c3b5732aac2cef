package llm

import (
	"regexp"
	"strings"
)

var reFence = regexp.MustCompile("(?m)^[ \t]*```[a-zA-Z]*[ \t]*$")

var invisibles = strings.NewReplacer(
	"\r\n", "\n",
	"\ufeff", "",
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\u2060", "",
)

// CleanReply strips markdown code fences, byte-order marks and zero-width
// characters that models wrap around the answer.
func CleanReply(s string) string {
	s = invisibles.Replace(s)
	s = reFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
