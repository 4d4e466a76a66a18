package extract

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
)

// Scanned job sheets render tickboxes as a small zoo of glyphs. Map them to
// stable ASCII tokens so field patterns only need to know two spellings.
var tickboxGlyphs = strings.NewReplacer(
	"☑", "[x]",
	"☒", "[x]",
	"✓", "[x]",
	"✔", "[x]",
	"☐", "[ ]",
)

// NormalizeText collapses noisy whitespace in page text. Conservative:
// keeps line breaks; collapses >2 newlines into a single blank line.
func NormalizeText(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	s = strings.Join(lines, "\n")
	s = tickboxGlyphs.Replace(s)
	return strings.TrimSpace(s)
}
