// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package decoration

import "strings"

const (
	BoldTag          = "b"
	ItalicTag        = "i"
	UnderlineTag     = "u"
	StrikethroughTag = "s"
	SpoilerTag       = "tg-spoiler"
	EmojiTag         = "tg-emoji"
	BlockquoteTag    = "blockquote"
)

// htmlEscaper escapes only the characters that can start or terminate markup.
// Quote characters are left alone so text reads naturally inside tag bodies.
var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// HTMLDecoration wraps values in HTML tags.
type HTMLDecoration struct{}

var _ Decoration = HTMLDecoration{}

func wrapTag(tag, value string) string {
	return "<" + tag + ">" + value + "</" + tag + ">"
}

func (HTMLDecoration) Link(value, link string) string {
	return `<a href="` + link + `">` + value + `</a>`
}

func (HTMLDecoration) Bold(value string) string          { return wrapTag(BoldTag, value) }
func (HTMLDecoration) Italic(value string) string        { return wrapTag(ItalicTag, value) }
func (HTMLDecoration) Underline(value string) string     { return wrapTag(UnderlineTag, value) }
func (HTMLDecoration) Strikethrough(value string) string { return wrapTag(StrikethroughTag, value) }
func (HTMLDecoration) Spoiler(value string) string       { return wrapTag(SpoilerTag, value) }
func (HTMLDecoration) Code(value string) string          { return wrapTag("code", value) }
func (HTMLDecoration) Pre(value string) string           { return wrapTag("pre", value) }

func (HTMLDecoration) PreLanguage(value, language string) string {
	return `<pre><code class="language-` + language + `">` + value + `</code></pre>`
}

func (HTMLDecoration) Quote(value string) string {
	return htmlEscaper.Replace(value)
}

func (HTMLDecoration) CustomEmoji(value, customEmojiID string) string {
	return "<" + EmojiTag + ` emoji-id="` + customEmojiID + `">` + value + "</" + EmojiTag + ">"
}

func (HTMLDecoration) Blockquote(value string) string {
	return wrapTag(BlockquoteTag, value)
}

func (HTMLDecoration) ExpandableBlockquote(value string) string {
	return "<" + BlockquoteTag + " expandable>" + value + "</" + BlockquoteTag + ">"
}
