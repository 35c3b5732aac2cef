package llm

import (
	"strings"
)

// BuildSystemPrompt tells the model what the card looks like and how to answer.
func BuildSystemPrompt() string {
	parts := []string{
		"You read photographs of Ethiopian outpatient medical cards.",
		"Cards may mix Amharic (Ge'ez script) and English.",
		"Answer ONLY with the tags below, one per line, and nothing else.",
		"If a value is not visible, leave the tag empty. Never guess.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt lists the tags the model should fill in.
func BuildUserPrompt(filename string) string {
	var b strings.Builder
	b.WriteString("Extract the following from this card")
	if f := strings.TrimSpace(filename); f != "" {
		b.WriteString(" (file ")
		b.WriteString(f)
		b.WriteString(")")
	}
	b.WriteString(":\n")
	for _, line := range []string{
		"<name>full patient name</name>",
		"<age>age in years, digits only</age>",
		"<sex>M or F; copy ወ or ሴ exactly if that is what is written</sex>",
		"<telephone>phone number as written</telephone>",
		"<address>town or area</address>",
		"<kebele>kebele number, digits only</kebele>",
		"<date>card date as written, e.g. DD/MM/YYYY</date>",
	} {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
