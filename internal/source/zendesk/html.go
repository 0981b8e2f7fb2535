package zendesk

import (
	"strings"

	"golang.org/x/net/html"
)

// CleanHTML returns the visible text of an article body with whitespace collapsed.
// Text nodes are joined by a single space, script and style content is dropped.
func CleanHTML(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(body))

	var parts []string
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); isHidden(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isHidden(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			if text := strings.TrimSpace(string(z.Text())); text != "" {
				parts = append(parts, text)
			}
		}
	}
}

func isHidden(tag []byte) bool {
	switch string(tag) {
	case "script", "style", "noscript":
		return true
	}
	return false
}
