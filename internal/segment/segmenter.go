// Package segment splits unstructured pattern text into metadata fields and
// an ordered list of instruction steps using heading heuristics.
package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mrlokans/patterns/internal/importers"
)

const legendTitle = "Legend"

// Segmenter applies a Vocabulary to text. It has no mutable state and may be
// used from several goroutines.
type Segmenter struct {
	vocab *Vocabulary
}

// New creates a Segmenter. A nil vocabulary selects Default.
func New(v *Vocabulary) *Segmenter {
	if v == nil {
		v = Default()
	}
	return &Segmenter{vocab: v}
}

// Vocabulary returns the dictionaries in use.
func (s *Segmenter) Vocabulary() *Vocabulary { return s.vocab }

// Result is the output of one segmentation.
type Result struct {
	// Metadata maps field names (FieldYarn, FieldNeedles, ...) to values.
	Metadata map[string]string
	// Intro is body text found before the instruction section.
	Intro string
	// Steps are numbered 1..N. A legend step, if any, comes last.
	Steps []importers.ExtractedStep
	// Images lists every inline image referenced by the text, in order.
	Images []string
	// Diagrams lists inline images classified as charts or symbol keys.
	Diagrams []string
}

// Segment runs the full segmentation over text. labeled holds values found
// in structured markup (definition lists, tables) keyed by their label and
// is consulted after the text strategies; it may be nil.
func (s *Segmenter) Segment(text string, labeled map[string]string) Result {
	lines := s.Outline(text)
	meta, consumed, metaEnd := s.extractMetadata(lines, labeled)
	boundary := s.instructionBoundary(lines, consumed, metaEnd)

	b := stepBuilder{vocab: s.vocab}
	var intro paragraphs
	// entry is a legend abbreviation whose meaning is on the next line.
	var entry string
	for i, l := range lines {
		if consumed[i] {
			continue
		}
		if entry != "" {
			if l.Kind == LineBody && b.inLegend() {
				b.body(entry + ": " + l.Text)
				entry = ""
				continue
			}
			b.body(entry)
			entry = ""
		}
		if l.Kind == LineImage {
			b.image(l)
			continue
		}
		if l.Kind == LineHeading && l.Value != "" && b.inLegend() && !s.vocab.IsKnownHeading(l.Text) {
			// "PSSO: pass slipped stitch over" inside a legend is an entry.
			b.body(legendTerm(l.Text) + ": " + l.Value)
			continue
		}
		if l.Kind == LineHeading && b.inLegend() && isAbbreviation(l.Text) && !s.vocab.IsKnownHeading(l.Text) {
			entry = legendTerm(l.Text)
			continue
		}
		if l.Kind == LineHeading && (i >= boundary || s.vocab.IsLegend(l.Text)) {
			b.heading(l, s.vocab.IsLegend(l.Text))
			continue
		}
		if i < boundary && !b.inLegend() {
			// Text before the instructions is introduction.
			switch {
			case l.Kind == LineBody && l.Label == "":
				intro.add(l.Text)
			case l.Kind == LineBlank:
				intro.breakParagraph()
			}
			continue
		}
		switch l.Kind {
		case LineHeading:
			// Only reached before the boundary: closes the legend section.
			b.flush()
		case LineBody:
			b.body(l.Text)
		case LineBlank:
			b.blank()
		}
	}

	if entry != "" {
		b.body(entry)
	}
	d := importers.ExtractedData{Steps: b.finish()}
	d.Finalize(0)

	return Result{
		Metadata: meta,
		Intro:    intro.String(),
		Steps:    d.Steps,
		Images:   b.images,
		Diagrams: b.diagrams,
	}
}

// extractMetadata tries, per field, a heading block, then an inline label,
// then the structured-markup map. Candidates that look like UI text are
// rejected and the next strategy is tried. It returns the values, the
// indices of lines that belong to metadata, and the index just past the
// last metadata line.
func (s *Segmenter) extractMetadata(lines []Line, labeled map[string]string) (map[string]string, map[int]bool, int) {
	meta := make(map[string]string)
	consumed := make(map[int]bool)
	end := -1

	for _, field := range s.vocab.Fields() {
		if v, idx, ok := s.headingBlock(lines, field); ok {
			meta[field] = v
			for _, i := range idx {
				consumed[i] = true
				end = max(end, i)
			}
			continue
		}
		if v, i, ok := s.inlineLabel(lines, field); ok {
			meta[field] = v
			consumed[i] = true
			end = max(end, i)
			continue
		}
		if v, ok := s.labeledValue(labeled, field); ok {
			meta[field] = v
		}
	}
	return meta, consumed, end + 1
}

func (s *Segmenter) headingBlock(lines []Line, field string) (string, []int, bool) {
	for i, l := range lines {
		if l.Kind != LineHeading {
			continue
		}
		if f, ok := s.vocab.MetadataField(l.Text); !ok || f != field {
			continue
		}
		idx := []int{i}
		var parts []string
		if l.Value != "" {
			parts = append(parts, l.Value)
		}
		for j := i + 1; j < len(lines); j++ {
			next := lines[j]
			if next.Kind == LineHeading || (next.Kind == LineBlank && len(parts) > 0) {
				break
			}
			if next.Kind == LineBody && next.Label != "" {
				if other, ok := s.vocab.MetadataField(next.Label); ok && other != field {
					break
				}
			}
			if next.Kind == LineImage {
				continue
			}
			idx = append(idx, j)
			if next.Kind == LineBody {
				parts = append(parts, next.Text)
			}
		}
		value := strings.Join(parts, "\n")
		if s.vocab.LooksLikeChrome(value) {
			continue
		}
		return value, idx, true
	}
	return "", nil, false
}

func (s *Segmenter) inlineLabel(lines []Line, field string) (string, int, bool) {
	for i, l := range lines {
		if l.Kind != LineBody || l.Label == "" {
			continue
		}
		if f, ok := s.vocab.MetadataField(l.Label); !ok || f != field {
			continue
		}
		if s.vocab.LooksLikeChrome(l.Value) {
			continue
		}
		return l.Value, i, true
	}
	return "", 0, false
}

func (s *Segmenter) labeledValue(labeled map[string]string, field string) (string, bool) {
	// Map iteration order is random; pick the lexically first matching label.
	best, bestKey := "", ""
	for k, v := range labeled {
		f, ok := s.vocab.MetadataField(k)
		if !ok || f != field || s.vocab.LooksLikeChrome(v) {
			continue
		}
		if bestKey == "" || k < bestKey {
			best, bestKey = strings.TrimSpace(v), k
		}
	}
	return best, bestKey != ""
}

// instructionBoundary returns the index of the first line of the
// instruction section: the first start-marker heading after the metadata,
// else the first one anywhere, else the line after the metadata.
func (s *Segmenter) instructionBoundary(lines []Line, consumed map[int]bool, metaEnd int) int {
	first := -1
	for i, l := range lines {
		if l.Kind != LineHeading || consumed[i] || !s.vocab.IsStartMarker(l.Text) {
			continue
		}
		if i >= metaEnd {
			return i
		}
		if first < 0 {
			first = i
		}
	}
	if first >= 0 {
		return first
	}
	return metaEnd
}

const maxAbbreviationRunes = 6

// isAbbreviation reports whether a heading is a single short token such as
// SSK or M1L, the usual form of a stitch abbreviation.
func isAbbreviation(title string) bool {
	return !strings.ContainsAny(title, " \t") && utf8.RuneCountInString(title) <= maxAbbreviationRunes
}

// legendTerm restores the upper case that heading canonicalization removed
// from abbreviations.
func legendTerm(title string) string {
	if isAbbreviation(title) {
		return strings.ToUpper(title)
	}
	return title
}

type stepBuilder struct {
	vocab    *Vocabulary
	steps    []importers.ExtractedStep
	cur      *importers.ExtractedStep
	para     paragraphs
	images   []string
	diagrams []string
	legend   []string
}

func (b *stepBuilder) inLegend() bool {
	return b.cur != nil && b.cur.Kind == importers.StepKindLegend
}

func (b *stepBuilder) flush() {
	if b.cur == nil {
		return
	}
	b.cur.Description = b.para.String()
	if b.cur.Description != "" || len(b.cur.Images) > 0 {
		b.steps = append(b.steps, *b.cur)
	}
	b.cur = nil
	b.para = paragraphs{}
}

func (b *stepBuilder) heading(l Line, legend bool) {
	b.flush()
	kind := importers.StepKindInstruction
	if legend {
		kind = importers.StepKindLegend
	}
	b.cur = &importers.ExtractedStep{Title: l.Text, Kind: kind}
	if l.Value != "" {
		b.para.add(l.Value)
	}
}

func (b *stepBuilder) body(text string) {
	if b.cur == nil {
		b.cur = &importers.ExtractedStep{Kind: importers.StepKindInstruction}
	}
	b.para.add(text)
}

func (b *stepBuilder) blank() { b.para.breakParagraph() }

func (b *stepBuilder) image(l Line) {
	b.images = append(b.images, l.URL)
	if b.vocab.IsDiagram(l.Text, l.URL) {
		b.diagrams = append(b.diagrams, l.URL)
		return
	}
	if b.inLegend() {
		b.cur.Images = append(b.cur.Images, l.URL)
		return
	}
	if b.cur != nil {
		b.cur.Images = append(b.cur.Images, l.URL)
	}
}

func (b *stepBuilder) finish() []importers.ExtractedStep {
	b.flush()
	if len(b.diagrams) == 0 {
		return b.steps
	}
	for i := range b.steps {
		if b.steps[i].Kind == importers.StepKindLegend {
			b.steps[i].Images = append(b.steps[i].Images, b.diagrams...)
			return b.steps
		}
	}
	return append(b.steps, importers.ExtractedStep{
		Title:  legendTitle,
		Kind:   importers.StepKindLegend,
		Images: append([]string(nil), b.diagrams...),
	})
}

// paragraphs accumulates body lines, deciding per line whether it continues
// the current paragraph or starts a new one.
type paragraphs struct {
	done []string
	cur  string
	open bool
}

var hyphenBreak = regexp.MustCompile(`\p{L}-$`)

func (p *paragraphs) add(line string) {
	switch {
	case !p.open:
		p.cur, p.open = line, true
	case hyphenBreak.MatchString(p.cur) && startsLower(line):
		p.cur = strings.TrimSuffix(p.cur, "-") + line
	case startsLower(line) || strings.HasPrefix(line, "("):
		p.cur += " " + line
	default:
		p.breakParagraph()
		p.cur, p.open = line, true
	}
}

func (p *paragraphs) breakParagraph() {
	if p.open {
		p.done = append(p.done, p.cur)
		p.cur, p.open = "", false
	}
}

func (p *paragraphs) String() string {
	all := p.done
	if p.open {
		all = append(all[:len(all):len(all)], p.cur)
	}
	return strings.Join(all, "\n\n")
}

func startsLower(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLower(r)
}
