// Copyright 2024-2026 Aiku AI

package matrix

import (
	"regexp"
	"strings"
)

var (
	emojiRe = regexp.MustCompile(`(?s)<tg-emoji emoji-id="[^"]*">(.*?)</tg-emoji>`)
	preRe   = regexp.MustCompile(`(?s)<pre>.*?</pre>`)
)

var tagReplacer = strings.NewReplacer(
	"<tg-spoiler>", "<span data-mx-spoiler>",
	"</tg-spoiler>", "</span>",
	"<blockquote expandable>", "<blockquote>",
)

// toMatrixHTML maps HTML decoration output onto the HTML subset Matrix
// clients render: spoilers become data-mx-spoiler spans, custom emoji fall
// back to their text and newlines outside pre blocks become line breaks.
func toMatrixHTML(text string) string {
	text = tagReplacer.Replace(text)
	text = emojiRe.ReplaceAllString(text, "$1")

	var sb strings.Builder
	last := 0
	for _, loc := range preRe.FindAllStringIndex(text, -1) {
		sb.WriteString(strings.ReplaceAll(text[last:loc[0]], "\n", "<br>"))
		sb.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	sb.WriteString(strings.ReplaceAll(text[last:], "\n", "<br>"))
	return sb.String()
}
