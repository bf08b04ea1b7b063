package auth

import (
	"strings"

	"golang.org/x/net/html"
)

// SanitizeText strips markup from free-form user input and returns the
// trimmed text content. Script and style bodies are dropped.
func SanitizeText(input string) string {
	if !strings.ContainsAny(input, "<&") {
		return strings.TrimSpace(input)
	}
	tokenizer := html.NewTokenizer(strings.NewReader(input))
	var b strings.Builder
	skip := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isRawTextTag(string(name)) {
				skip++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isRawTextTag(string(name)) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

func isRawTextTag(name string) bool {
	return name == "script" || name == "style"
}
