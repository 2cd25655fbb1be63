package segment

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mrlokans/patterns/internal/importers"
)

var (
	weightCategory = regexp.MustCompile(`(?i)\b(super bulky|super chunky|light fingering|heavy worsted|lace|fingering|sock|sport|dk|double knit|worsted|aran|bulky|chunky|jumbo)\b`)
	yarnLength     = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(yds?|yards?|m|meters?|metres?)\b`)
	yarnWeight     = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(g|grams?|oz)\b`)
	fiberPart      = regexp.MustCompile(`(?i)(\d{1,3})\s*%\s*([\p{L}][\p{L} -]*[\p{L}])`)
	colorway       = regexp.MustCompile(`(?i)\b(?:colou?rway|colou?r|shade)\s*[:#-]?\s*([^,;()]+)`)
	yarnNameEnd    = regexp.MustCompile(`\s*(?:[(,;]|\s-\s|\d)`)

	gaugeStitches = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:sts|stitches|st)\b`)
	gaugeRows     = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:rows|rnds|rounds)\b`)
)

// ParseYarns splits a yarn or materials value into one entry per line or
// semicolon-separated item.
func ParseYarns(value string) []importers.ExtractedYarn {
	var out []importers.ExtractedYarn
	for _, item := range strings.FieldsFunc(value, func(r rune) bool { return r == '\n' || r == ';' }) {
		item = strings.TrimSpace(strings.TrimLeft(item, "-*• "))
		if item == "" {
			continue
		}
		y := ParseYarn(item)
		if y.Name == "" && y.Weight == "" && y.Length == "" {
			continue
		}
		out = append(out, y)
	}
	return out
}

// ParseYarn reads the attributes it can recognise from one material line.
func ParseYarn(item string) importers.ExtractedYarn {
	y := importers.ExtractedYarn{}
	if m := weightCategory.FindStringSubmatch(item); m != nil {
		y.WeightCategory = normalizeWeightCategory(m[1])
	}
	if m := yarnLength.FindStringSubmatch(item); m != nil {
		y.Length = m[1] + " " + normalizeLengthUnit(m[2])
	}
	if m := yarnWeight.FindStringSubmatch(item); m != nil {
		y.Weight = m[1] + " " + strings.ToLower(strings.TrimSuffix(strings.TrimSuffix(m[2], "s"), "ram"))
	}
	if fibers := fiberPart.FindAllStringSubmatch(item, -1); len(fibers) > 0 {
		parts := make([]string, 0, len(fibers))
		for _, f := range fibers {
			parts = append(parts, f[1]+"% "+strings.ToLower(strings.TrimSpace(f[2])))
		}
		y.FiberContent = strings.Join(parts, ", ")
	}
	if m := colorway.FindStringSubmatch(item); m != nil {
		y.Colorway = strings.TrimSpace(m[1])
	}

	name := item
	if loc := yarnNameEnd.FindStringIndex(item); loc != nil {
		name = item[:loc[0]]
	}
	y.Name = strings.TrimSpace(strings.TrimRight(name, ":- "))
	return y
}

func normalizeWeightCategory(s string) string {
	s = strings.ToLower(s)
	switch s {
	case "double knit":
		return "dk"
	case "sock":
		return "fingering"
	case "super chunky":
		return "super bulky"
	case "chunky":
		return "bulky"
	}
	return s
}

func normalizeLengthUnit(u string) string {
	u = strings.ToLower(u)
	if strings.HasPrefix(u, "y") {
		return "yds"
	}
	return "m"
}

// ParseGauge returns stitch and row counts from a gauge description such as
// "22 sts and 30 rows = 10 cm". Missing values are zero.
func ParseGauge(value string) (stitches, rows float64) {
	if m := gaugeStitches.FindStringSubmatch(value); m != nil {
		stitches = parseNumber(m[1])
	}
	if m := gaugeRows.FindStringSubmatch(value); m != nil {
		rows = parseNumber(m[1])
	}
	return stitches, rows
}

func parseNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return f
}
