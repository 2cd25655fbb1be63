package segment

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Metadata field names.
const (
	FieldYarn    = "yarn"
	FieldNeedles = "needles"
	FieldGauge   = "gauge"
	FieldSize    = "size"
	FieldNotions = "notions"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// Vocabulary holds the heading dictionaries and noise lists used by the
// segmenter. A loaded Vocabulary is read-only and safe to share.
type Vocabulary struct {
	Metadata         map[string][]string `yaml:"metadata"`
	InstructionStart []string            `yaml:"instruction_start"`
	GarmentNouns     []string            `yaml:"garment_nouns"`
	Legend           []string            `yaml:"legend"`
	NoiseKeywords    []string            `yaml:"noise_keywords"`
	NoiseSelectors   []string            `yaml:"noise_selectors"`
	UIChrome         []string            `yaml:"ui_chrome"`
	DiagramKeywords  []string            `yaml:"diagram_keywords"`

	fieldByTerm map[string]string
	start       map[string]bool
	garment     map[string]bool
	legend      map[string]bool
	diagram     map[string]bool
	chrome      [][]string
	fields      []string
}

// Default returns the embedded vocabulary. It is parsed once per process.
var Default = sync.OnceValue(func() *Vocabulary {
	v, err := LoadVocabulary(defaultVocabulary)
	if err != nil {
		panic(fmt.Sprintf("segment: embedded vocabulary: %v", err))
	}
	return v
})

// LoadVocabulary parses a YAML vocabulary document.
func LoadVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if len(v.Metadata) == 0 {
		return nil, fmt.Errorf("vocabulary has no metadata headings")
	}
	v.index()
	return &v, nil
}

func (v *Vocabulary) index() {
	v.fieldByTerm = make(map[string]string)
	for field, terms := range v.Metadata {
		v.fields = append(v.fields, field)
		for _, t := range terms {
			v.fieldByTerm[normalizeTerm(t)] = field
		}
	}
	sort.Strings(v.fields)
	v.start = toSet(v.InstructionStart)
	v.garment = toSet(v.GarmentNouns)
	v.legend = toSet(v.Legend)
	v.diagram = toSet(v.DiagramKeywords)
	for i, k := range v.NoiseKeywords {
		v.NoiseKeywords[i] = strings.ToLower(k)
	}
	for _, k := range v.UIChrome {
		if phrase := wordTokens(k); len(phrase) > 0 {
			v.chrome = append(v.chrome, phrase)
		}
	}
}

func toSet(terms []string) map[string]bool {
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		set[normalizeTerm(t)] = true
	}
	return set
}

var parenthetical = regexp.MustCompile(`\([^)]*\)`)

// normalizeTerm lowercases, drops parentheticals, trims trailing colons and
// collapses whitespace.
func normalizeTerm(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "##"))
	s = parenthetical.ReplaceAllString(s, " ")
	s = strings.TrimRight(s, ":：.- ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Fields returns the metadata field names in sorted order.
func (v *Vocabulary) Fields() []string { return v.fields }

// MetadataField returns the field a heading or label refers to.
func (v *Vocabulary) MetadataField(term string) (string, bool) {
	f, ok := v.fieldByTerm[normalizeTerm(term)]
	return f, ok
}

// IsStartMarker reports whether term opens the instruction section.
func (v *Vocabulary) IsStartMarker(term string) bool {
	t := normalizeTerm(term)
	return v.start[t] || v.garment[t]
}

// IsLegend reports whether term names a symbol legend section.
func (v *Vocabulary) IsLegend(term string) bool {
	return v.legend[normalizeTerm(term)]
}

// IsKnownHeading reports an exact match against any heading dictionary.
func (v *Vocabulary) IsKnownHeading(term string) bool {
	t := normalizeTerm(term)
	if t == "" {
		return false
	}
	_, meta := v.fieldByTerm[t]
	return meta || v.start[t] || v.garment[t] || v.legend[t]
}

// IsNoise reports whether a short line is site boilerplate.
func (v *Vocabulary) IsNoise(line string) bool {
	if len(line) > 120 {
		return false
	}
	lower := strings.ToLower(line)
	for _, k := range v.NoiseKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// maxValueLineBytes bounds one line of a metadata value. Longer lines are
// prose or page text, not a material or needle entry.
const maxValueLineBytes = 400

// LooksLikeChrome reports whether a metadata candidate is UI text rather
// than a value. Denylist phrases match whole words only.
func (v *Vocabulary) LooksLikeChrome(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return true
	}
	for _, line := range strings.Split(value, "\n") {
		if len(line) > maxValueLineBytes {
			return true
		}
	}
	tokens := wordTokens(value)
	for _, phrase := range v.chrome {
		if containsPhrase(tokens, phrase) {
			return true
		}
	}
	return false
}

func containsPhrase(tokens, phrase []string) bool {
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j, w := range phrase {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// IsDiagram reports whether an image reference looks like a chart or
// symbol diagram, judged from its alt text and URL.
func (v *Vocabulary) IsDiagram(alt, url string) bool {
	for _, tok := range wordTokens(alt + " " + lastPathSegment(url)) {
		if v.diagram[tok] {
			return true
		}
	}
	return false
}

func lastPathSegment(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if i := strings.LastIndexByte(u, '/'); i >= 0 {
		u = u[i+1:]
	}
	return u
}

func wordTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r < 'a' || r > 'z'
	})
}
