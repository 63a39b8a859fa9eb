// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package mmfmt converts HTML decoration output to Mattermost markdown.
package mmfmt

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	boldRe       = regexp.MustCompile(`(?s)<b>(.*?)</b>`)
	italicRe     = regexp.MustCompile(`(?s)<i>(.*?)</i>`)
	underlineRe  = regexp.MustCompile(`(?s)<u>(.*?)</u>`)
	strikeRe     = regexp.MustCompile(`(?s)<s>(.*?)</s>`)
	spoilerRe    = regexp.MustCompile(`(?s)<tg-spoiler>(.*?)</tg-spoiler>`)
	emojiRe      = regexp.MustCompile(`(?s)<tg-emoji emoji-id="[^"]*">(.*?)</tg-emoji>`)
	codeRe       = regexp.MustCompile(`(?s)<code>(.*?)</code>`)
	preLangRe    = regexp.MustCompile(`(?s)<pre><code class="language-([^"]*)">(.*?)</code></pre>`)
	preRe        = regexp.MustCompile(`(?s)<pre>(.*?)</pre>`)
	linkRe       = regexp.MustCompile(`(?s)<a href="([^"]*)"[^>]*>(.*?)</a>`)
	blockquoteRe = regexp.MustCompile(`(?s)<blockquote(?: expandable)?>(.*?)</blockquote>`)
	brRe         = regexp.MustCompile(`<br\s*/?>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	blockRe      = regexp.MustCompile("\x00BLOCK([0-9]+)\x00")
)

// FromHTML converts text rendered by the HTML decoration to Mattermost
// markdown. Markup Mattermost has no equivalent for (underline, spoilers,
// custom emoji) is reduced to its text.
func FromHTML(text string) string {
	if text == "" {
		return ""
	}

	// Code blocks first, their content is literal.
	var blocks []string
	stash := func(s string) string {
		blocks = append(blocks, s)
		return "\x00BLOCK" + strconv.Itoa(len(blocks)-1) + "\x00"
	}
	text = preLangRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := preLangRe.FindStringSubmatch(match)
		return stash("```" + parts[1] + "\n" + html.UnescapeString(parts[2]) + "\n```")
	})
	text = preRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := preRe.FindStringSubmatch(match)
		return stash("```\n" + html.UnescapeString(parts[1]) + "\n```")
	})
	text = codeRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := codeRe.FindStringSubmatch(match)
		return stash("`" + html.UnescapeString(parts[1]) + "`")
	})

	// Inline formatting.
	text = boldRe.ReplaceAllString(text, "**$1**")
	text = italicRe.ReplaceAllString(text, "_${1}_")
	text = strikeRe.ReplaceAllString(text, "~~$1~~")
	text = underlineRe.ReplaceAllString(text, "$1")
	text = spoilerRe.ReplaceAllString(text, "$1")
	text = emojiRe.ReplaceAllString(text, "$1")

	// Links.
	text = linkRe.ReplaceAllString(text, "[$2]($1)")

	// Blockquotes.
	text = blockquoteRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := blockquoteRe.FindStringSubmatch(match)
		lines := strings.Split(strings.Trim(parts[1], "\n"), "\n")
		for i, line := range lines {
			lines[i] = "> " + line
		}
		return strings.Join(lines, "\n")
	})

	text = brRe.ReplaceAllString(text, "\n")
	text = tagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	text = blockRe.ReplaceAllStringFunc(text, func(match string) string {
		idx, _ := strconv.Atoi(blockRe.FindStringSubmatch(match)[1])
		if idx < len(blocks) {
			return blocks[idx]
		}
		return ""
	})
	return text
}
