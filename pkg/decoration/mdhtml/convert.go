// Copyright 2024-2026 Aiku AI

// Package mdhtml converts text produced by the Markdown decoration into the
// HTML the HTML decoration would have produced for the same calls. Networks
// that only accept HTML (or only their own markdown dialect) use it to render
// replies written in Markdown mode.
package mdhtml

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aiku/smartbot/pkg/decoration"
)

var (
	codeBlockRe   = regexp.MustCompile("^```(\\w*)\\n(?s:(.*?))\\n```")
	emojiRe       = regexp.MustCompile(`!\[([^\]]*)\]\(tg://emoji\?id=([^)]*)\)`)
	linkRe        = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
	underlineRe   = regexp.MustCompile(`(?s)__\r(.*?)__\r`)
	italicRe      = regexp.MustCompile(`(?s)_\r(.*?)_\r`)
	boldRe        = regexp.MustCompile(`(?s)\*(.+?)\*`)
	strikeRe      = regexp.MustCompile(`(?s)~(.+?)~`)
	spoilerRe     = regexp.MustCompile(`(?s)\|\|(.+?)\|\|`)
	placeholderRe = regexp.MustCompile("\x00([A-Z]+)([0-9]+)\x00")
	codeEscapeRe  = regexp.MustCompile("\\\\([_*\\[\\]()~`>#+\\-=|{}.!\\\\])")
)

const (
	quotePrefix      = "&gt;"
	maxRestorePasses = 2
)

// stash holds fragments pulled out of the text before inline formatting runs.
type stash struct {
	kinds  map[string][]string
	langs  []string
	blocks []string
}

func (s *stash) put(kind, value string) string {
	if s.kinds == nil {
		s.kinds = make(map[string][]string)
	}
	idx := len(s.kinds[kind])
	s.kinds[kind] = append(s.kinds[kind], value)
	return "\x00" + kind + strconv.Itoa(idx) + "\x00"
}

func (s *stash) restore(text string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := placeholderRe.FindStringSubmatch(match)
		idx, _ := strconv.Atoi(parts[2])
		if parts[1] == "PRE" {
			if idx < len(s.blocks) {
				if s.langs[idx] != "" {
					return decoration.HTML.PreLanguage(s.blocks[idx], s.langs[idx])
				}
				return decoration.HTML.Pre(s.blocks[idx])
			}
			return ""
		}
		values := s.kinds[parts[1]]
		if idx >= len(values) {
			return ""
		}
		return values[idx]
	})
}

// Convert renders Markdown decoration output as HTML decoration output.
func Convert(text string) string {
	if text == "" {
		return ""
	}
	html := decoration.HTML
	var s stash

	// Steps 1 and 2: code and escaped characters are literal, pull them out
	// in a single left-to-right pass so a backslash inside code stays put.
	text = s.extractLiterals(text)

	// Step 3: everything left is markup or plain text.
	text = html.Quote(text)

	// Step 4: links. URLs are stashed so their characters are not read as markup.
	text = emojiRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := emojiRe.FindStringSubmatch(match)
		return html.CustomEmoji(parts[1], s.put("URL", parts[2]))
	})
	text = linkRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := linkRe.FindStringSubmatch(match)
		return html.Link(parts[1], s.put("URL", parts[2]))
	})

	// Step 5: line-level blockquotes.
	text = convertBlockquotes(text)

	// Step 6: inline entities. Underline must run before italic since its
	// delimiter contains the italic one.
	text = underlineRe.ReplaceAllString(text, "<u>$1</u>")
	text = italicRe.ReplaceAllString(text, "<i>$1</i>")
	text = boldRe.ReplaceAllString(text, "<b>$1</b>")
	text = strikeRe.ReplaceAllString(text, "<s>$1</s>")
	text = spoilerRe.ReplaceAllString(text, "<tg-spoiler>$1</tg-spoiler>")

	// Step 7: put the stashed fragments back. A URL can itself hold an
	// escaped character, so restore twice.
	for range maxRestorePasses {
		if !placeholderRe.MatchString(text) {
			break
		}
		text = s.restore(text)
	}
	return text
}

func (s *stash) extractLiterals(text string) string {
	html := decoration.HTML
	var buf strings.Builder
	buf.Grow(len(text))
	for i := 0; i < len(text); {
		rest := text[i:]
		switch {
		case rest[0] == '\\' && len(rest) > 1:
			_, size := utf8.DecodeRuneInString(rest[1:])
			buf.WriteString(s.put("ESC", html.Quote(rest[1:1+size])))
			i += 1 + size
			continue
		case strings.HasPrefix(rest, "```"):
			if m := codeBlockRe.FindStringSubmatch(rest); m != nil {
				idx := len(s.blocks)
				s.blocks = append(s.blocks, html.Quote(unescapeCode(m[2])))
				s.langs = append(s.langs, m[1])
				buf.WriteString("\x00PRE" + strconv.Itoa(idx) + "\x00")
				i += len(m[0])
				continue
			}
		case rest[0] == '`':
			if end := closingBacktick(rest); end > 0 {
				buf.WriteString(s.put("CODE", html.Code(html.Quote(unescapeCode(rest[1:end])))))
				i += end + 1
				continue
			}
		}
		buf.WriteByte(rest[0])
		i++
	}
	return buf.String()
}

// closingBacktick returns the index of the backtick closing the code span
// opened at code[0], skipping escaped backticks, or -1.
func closingBacktick(code string) int {
	for i := 1; i < len(code); i++ {
		switch code[i] {
		case '\\':
			i++
		case '`':
			return i
		}
	}
	return -1
}

// unescapeCode drops the backslash in front of special characters. Other
// backslashes inside code are literal.
func unescapeCode(code string) string {
	return codeEscapeRe.ReplaceAllString(code, "$1")
}

func convertBlockquotes(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	var quote []string

	flush := func() {
		if len(quote) == 0 {
			return
		}
		last := len(quote) - 1
		if body, ok := strings.CutSuffix(quote[last], "||"); ok {
			quote[last] = body
			out = append(out, decoration.HTML.ExpandableBlockquote(strings.Join(quote, "\n")))
		} else {
			out = append(out, decoration.HTML.Blockquote(strings.Join(quote, "\n")))
		}
		quote = nil
	}

	for _, line := range lines {
		if body, ok := strings.CutPrefix(line, quotePrefix); ok {
			quote = append(quote, body)
			continue
		}
		flush()
		out = append(out, line)
	}
	flush()
	return strings.Join(out, "\n")
}
