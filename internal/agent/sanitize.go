package agent

import "strings"

// curlyQuoteReplacer replaces curly quotes and straight double quotes with
// backticks before a prompt is passed to an agent CLI (§6): some agent CLIs
// mis-tokenize a prompt containing unescaped double quotes when it is
// interpolated into a shell command line.
var curlyQuoteReplacer = strings.NewReplacer(
	"“", "`", // left double quotation mark
	"”", "`", // right double quotation mark
	"‘", "`", // left single quotation mark
	"’", "`", // right single quotation mark
	"\"", "`",
)

// SanitizePrompt applies the §6 sanitization rule to a prompt string before
// it is passed to an agent CLI.
func SanitizePrompt(prompt string) string {
	return curlyQuoteReplacer.Replace(prompt)
}
