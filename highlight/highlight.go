// Package highlight marks keyword and evidence occurrences in clinical note
// text for HTML display.
package highlight

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind identifies which marker a span is rendered with.
type Kind string

const (
	KindEvidence Kind = "evidence"
	KindKeyword  Kind = "keyword"
)

const (
	evidenceOpen = `<span style="background-color: #90EE90; padding: 2px 4px; ` +
		`border-radius: 3px; border: 1px solid #228B22;">`
	keywordOpen = `<span style="background-color: #FFFF99; padding: 1px 2px; ` +
		`border-radius: 2px;">`
	markerClose = `</span>`
	lineBreak   = `<br>`
)

// Span is a half-open byte range [Start, End) of the source text.
type Span struct {
	Start int  `json:"start"`
	End   int  `json:"end"`
	Kind  Kind `json:"kind"`
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// EscapeHTML escapes &, <, > and double quotes.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// FindSpans returns every evidence and keyword span that Highlight will
// consider, sorted by start offset. Evidence spans come first for equal
// starts because the sort is stable.
func FindSpans(text string, keywords, evidence []string) []Span {
	if text == "" {
		return nil
	}

	var spans []Span
	for _, ev := range evidence {
		if strings.TrimSpace(ev) == "" {
			continue
		}
		re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(ev))
		for _, loc := range re.FindAllStringIndex(text, -1) {
			spans = append(spans, Span{Start: loc[0], End: loc[1], Kind: KindEvidence})
		}
	}
	evidenceCount := len(spans)

	for _, kw := range keywords {
		if strings.TrimSpace(kw) == "" {
			continue
		}
		for _, loc := range findWholeWords(text, kw) {
			if overlapsAny(loc[0], loc[1], spans[:evidenceCount]) {
				continue
			}
			spans = append(spans, Span{Start: loc[0], End: loc[1], Kind: KindKeyword})
		}
	}

	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].Start < spans[j].Start
	})
	return spans
}

// Highlight returns text as HTML with evidence and keyword occurrences
// wrapped in their markers and newlines converted to <br>.
//
// Kept spans are emitted in order with a cursor that never moves backwards:
// when a span starts before the end of the previous one, only the part past
// the cursor is wrapped, and a span that ends at or before the cursor emits
// nothing.
func Highlight(text string, keywords, evidence []string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	cursor := 0
	for _, sp := range FindSpans(text, keywords, evidence) {
		if sp.End <= cursor {
			continue
		}
		start := sp.Start
		if start > cursor {
			b.WriteString(EscapeHTML(text[cursor:start]))
		} else {
			start = cursor
		}
		if sp.Kind == KindEvidence {
			b.WriteString(evidenceOpen)
		} else {
			b.WriteString(keywordOpen)
		}
		b.WriteString(EscapeHTML(text[start:sp.End]))
		b.WriteString(markerClose)
		cursor = sp.End
	}
	if cursor < len(text) {
		b.WriteString(EscapeHTML(text[cursor:]))
	}

	return strings.ReplaceAll(b.String(), "\n", lineBreak)
}

// findWholeWords scans text left to right for case-insensitive occurrences
// of word that sit on word boundaries at both ends. A rejected candidate only
// advances the scan by one rune, so a valid match overlapping it is still
// found.
func findWholeWords(text, word string) [][2]int {
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(word))

	var out [][2]int
	pos := 0
	for pos <= len(text) {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if isBoundary(text, start) && isBoundary(text, end) {
			out = append(out, [2]int{start, end})
			pos = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		if size == 0 {
			break
		}
		pos = start + size
	}
	return out
}

// isBoundary reports whether i is a word boundary: exactly one side of it is
// a word character.
func isBoundary(text string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		before = isWordRune(r)
	}
	if i < len(text) {
		r, _ := utf8.DecodeRuneInString(text[i:])
		after = isWordRune(r)
	}
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func overlapsAny(start, end int, spans []Span) bool {
	for _, sp := range spans {
		if start < sp.End && sp.Start < end {
			return true
		}
	}
	return false
}
