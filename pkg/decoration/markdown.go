// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package decoration

import (
	"regexp"
	"strings"
)

// EntitySeparator is placed directly inside italic and underline delimiters.
// The receiving parser drops it, but its presence keeps two adjacent spans
// such as "_a_" "_b_" from being merged into one entity.
const EntitySeparator = "\r"

// MarkdownSpecialChars is the set of characters Quote prefixes with a backslash.
const MarkdownSpecialChars = "_*[]()~`>#+-=|{}.!\\"

var markdownQuoteRe = regexp.MustCompile("([_*\\[\\]()~`>#+\\-=|{}.!\\\\])")

// MarkdownDecoration wraps values in Markdown delimiters.
type MarkdownDecoration struct{}

var _ Decoration = MarkdownDecoration{}

func (MarkdownDecoration) Link(value, link string) string {
	return "[" + value + "](" + link + ")"
}

func (MarkdownDecoration) Bold(value string) string {
	return "*" + value + "*"
}

func (MarkdownDecoration) Italic(value string) string {
	return "_" + EntitySeparator + value + "_" + EntitySeparator
}

func (MarkdownDecoration) Underline(value string) string {
	return "__" + EntitySeparator + value + "__" + EntitySeparator
}

func (MarkdownDecoration) Strikethrough(value string) string {
	return "~" + value + "~"
}

func (MarkdownDecoration) Spoiler(value string) string {
	return "||" + value + "||"
}

func (MarkdownDecoration) Code(value string) string {
	return "`" + value + "`"
}

func (MarkdownDecoration) Pre(value string) string {
	return "```\n" + value + "\n```"
}

func (MarkdownDecoration) PreLanguage(value, language string) string {
	return "```" + language + "\n" + value + "\n```"
}

func (MarkdownDecoration) Quote(value string) string {
	return markdownQuoteRe.ReplaceAllString(value, `\${1}`)
}

func (md MarkdownDecoration) CustomEmoji(value, customEmojiID string) string {
	return "!" + md.Link(value, "tg://emoji?id="+customEmojiID)
}

func (MarkdownDecoration) Blockquote(value string) string {
	return quoteLines(value)
}

func (MarkdownDecoration) ExpandableBlockquote(value string) string {
	return quoteLines(value) + "||"
}

func quoteLines(value string) string {
	lines := splitLines(value)
	for i, line := range lines {
		lines[i] = ">" + line
	}
	return strings.Join(lines, "\n")
}

// splitLines splits on "\n" and "\r\n". A lone "\r" is not a line break here
// because it is the entity separator used by Italic and Underline.
func splitLines(value string) []string {
	if value == "" {
		return nil
	}
	value = strings.TrimSuffix(value, "\n")
	lines := strings.Split(value, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
