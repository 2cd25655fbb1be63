package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// LineKind classifies one outline line.
type LineKind int

const (
	LineBlank LineKind = iota
	LineBody
	LineHeading
	LineImage
)

// Line is one entry of a normalized outline.
type Line struct {
	Kind LineKind
	// Text is the heading title (canonical form), the body text, or the image alt text.
	Text string
	// URL is set for image lines.
	URL string
	// Label is set for body lines of the form "Label: value".
	Label string
	// Value is the text after the colon of a labelled body line, or the
	// inline body of a heading written as "HEADING: text".
	Value string
}

const (
	headingMarker   = "## "
	maxUpperHeading = 60
	maxLabelRunes   = 40
	maxHeadingWords = 8
)

var (
	imageLine = regexp.MustCompile(`^!\[([^\]]*)\]\(([^)\s]+)\)$`)
	labelLine = regexp.MustCompile(`^[-*•\s]*([\p{L}][\p{L}\d /&'’().-]*?)\s*[:：]\s*(\S.*)$`)
	spaceRun  = regexp.MustCompile(`[\t\f\v\p{Zs}]+`)
)

// Outline turns free text into classified lines. Whitespace is
// normalized, boilerplate lines are dropped and headings are reduced to
// their canonical title.
func (s *Segmenter) Outline(text string) []Line {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []Line
	lastBlank := true
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(spaceRun.ReplaceAllString(raw, " "))
		if line == "" {
			if !lastBlank {
				lines = append(lines, Line{Kind: LineBlank})
				lastBlank = true
			}
			continue
		}
		if s.vocab.IsNoise(line) {
			continue
		}
		if l, ok := s.classify(line); ok {
			lines = append(lines, l)
			lastBlank = false
		}
	}
	for len(lines) > 0 && lines[len(lines)-1].Kind == LineBlank {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Render writes an outline back as text with one canonical heading marker.
// Rendering and re-outlining yields the same outline.
func Render(lines []Line) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch l.Kind {
		case LineHeading:
			b.WriteString(headingMarker)
			b.WriteString(l.Text)
			if l.Value != "" {
				b.WriteString(": ")
				b.WriteString(l.Value)
			}
		case LineImage:
			b.WriteString("![")
			b.WriteString(l.Text)
			b.WriteString("](")
			b.WriteString(l.URL)
			b.WriteString(")")
		case LineBody:
			b.WriteString(l.Text)
		}
	}
	return b.String()
}

// IsHeading reports whether a single line would be treated as a heading.
func (s *Segmenter) IsHeading(line string) bool {
	l, ok := s.classify(strings.TrimSpace(line))
	return ok && l.Kind == LineHeading && l.Value == ""
}

func (s *Segmenter) classify(line string) (Line, bool) {
	if strings.HasPrefix(line, headingMarker) || line == strings.TrimSpace(headingMarker) {
		rest := strings.TrimSpace(strings.TrimLeft(line, "#"))
		if m := labelLine.FindStringSubmatch(rest); m != nil {
			return Line{Kind: LineHeading, Text: CanonicalTitle(m[1]), Value: strings.TrimSpace(m[2])}, true
		}
		if title := CanonicalTitle(rest); title != "" {
			return Line{Kind: LineHeading, Text: title}, true
		}
		return Line{}, false
	}
	if m := imageLine.FindStringSubmatch(line); m != nil {
		return Line{Kind: LineImage, Text: m[1], URL: m[2]}, true
	}

	if m := labelLine.FindStringSubmatch(line); m != nil && utf8.RuneCountInString(m[1]) <= maxLabelRunes {
		label, value := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		if _, ok := s.vocab.MetadataField(label); ok {
			return Line{Kind: LineBody, Text: line, Label: label, Value: value}, true
		}
		if isUpperLabel(label) || s.vocab.IsStartMarker(label) || s.vocab.IsLegend(label) {
			return Line{Kind: LineHeading, Text: CanonicalTitle(label), Value: value}, true
		}
		return Line{Kind: LineBody, Text: line, Label: label, Value: value}, true
	}

	if s.headingRule(line) {
		return Line{Kind: LineHeading, Text: CanonicalTitle(line)}, true
	}
	return Line{Kind: LineBody, Text: line}, true
}

// headingRule is the composite heading test: a vocabulary match, an
// all-uppercase short line, or a title-cased line ending in a colon.
func (s *Segmenter) headingRule(line string) bool {
	if s.vocab.IsKnownHeading(line) {
		return true
	}
	if isUpperHeading(line) {
		return true
	}
	return isTitleColon(line)
}

func isUpperHeading(line string) bool {
	trimmed := strings.TrimRight(line, ":： ")
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxUpperHeading {
		return false
	}
	if len(strings.Fields(trimmed)) > maxHeadingWords {
		return false
	}
	letters := 0
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters > 0
}

// isUpperLabel is the stricter test used for "LABEL: text" lines, so that
// abbreviations such as "K2TOG: knit two together" or "SSK: ..." stay body text.
func isUpperLabel(label string) bool {
	if !isUpperHeading(label) {
		return false
	}
	letters := 0
	for _, r := range label {
		switch {
		case unicode.IsDigit(r):
			return false
		case unicode.IsLetter(r):
			letters++
		}
	}
	return letters >= 4
}

func isTitleColon(line string) bool {
	if !strings.HasSuffix(line, ":") && !strings.HasSuffix(line, "：") {
		return false
	}
	words := strings.Fields(strings.TrimRight(line, ":： "))
	if len(words) == 0 || len(words) > maxHeadingWords {
		return false
	}
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '(' && r != '&' {
			return false
		}
	}
	return true
}

// CanonicalTitle strips heading decoration and title-cases each word.
func CanonicalTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "#")
	s = strings.TrimSpace(strings.TrimRight(s, ":： "))
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

func titleWord(w string) string {
	lower := []rune(strings.ToLower(w))
	for i, r := range lower {
		if unicode.IsLetter(r) {
			if i == 0 || !unicode.IsDigit(lower[i-1]) {
				lower[i] = unicode.ToUpper(r)
			}
			break
		}
	}
	return string(lower)
}
