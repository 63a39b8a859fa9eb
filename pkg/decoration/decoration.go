// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package decoration renders reply text in one of two markup formats.
//
// Both renderers implement the same [Decoration] capability set, so handlers
// can format replies without knowing which output mode the dispatcher was
// configured with:
//
//	d := dp.Decoration()
//	text := d.Bold("Deleted") + " " + d.Code(d.Quote(userInput))
//
// The package also carries the UTF-16 offset codec used to compute entity
// offsets over text containing characters outside the basic multilingual plane.
package decoration

import (
	"fmt"
	"strings"
)

// Decoration is the set of text-formatting operations a renderer supports.
type Decoration interface {
	Bold(value string) string
	Italic(value string) string
	Underline(value string) string
	Strikethrough(value string) string
	Spoiler(value string) string
	Code(value string) string
	Pre(value string) string
	PreLanguage(value, language string) string
	Link(value, link string) string
	// Quote escapes value so it is rendered literally.
	Quote(value string) string
	CustomEmoji(value, customEmojiID string) string
	Blockquote(value string) string
	ExpandableBlockquote(value string) string
}

// ParseMode selects the output markup.
type ParseMode string

const (
	ParseModeHTML     ParseMode = "html"
	ParseModeMarkdown ParseMode = "markdown"
)

var (
	HTML     Decoration = HTMLDecoration{}
	Markdown Decoration = MarkdownDecoration{}
)

// ParseParseMode parses a configured output mode. Matching is case-insensitive.
func ParseParseMode(s string) (ParseMode, error) {
	switch mode := ParseMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case ParseModeHTML, ParseModeMarkdown:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown parse mode %q (want %q or %q)", s, ParseModeHTML, ParseModeMarkdown)
	}
}

// Valid reports whether pm is one of the known parse modes.
func (pm ParseMode) Valid() bool {
	return pm == ParseModeHTML || pm == ParseModeMarkdown
}

// Decoration returns the renderer for pm. Unknown modes fall back to HTML.
func (pm ParseMode) Decoration() Decoration {
	if pm == ParseModeMarkdown {
		return Markdown
	}
	return HTML
}
