package extractors

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// pageMeta holds values read from <head>.
type pageMeta struct {
	Title       string
	OGTitle     string
	Description string
	SiteName    string
	Images      []string
}

func readMeta(doc *goquery.Document, base *url.URL) pageMeta {
	var m pageMeta
	m.Title = collapseSpace(doc.Find("title").First().Text())
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, _ := s.Attr("property")
		if key == "" {
			key, _ = s.Attr("name")
		}
		content, ok := s.Attr("content")
		if !ok || strings.TrimSpace(content) == "" {
			return
		}
		content = strings.TrimSpace(content)
		switch strings.ToLower(key) {
		case "og:title":
			m.OGTitle = content
		case "og:description":
			if m.Description == "" {
				m.Description = content
			}
		case "description":
			m.Description = firstNonEmpty(m.Description, content)
		case "og:site_name":
			m.SiteName = content
		case "og:image", "og:image:secure_url", "twitter:image":
			if u := resolveURL(base, content); u != "" {
				m.Images = append(m.Images, u)
			}
		}
	})
	return m
}

var mainContentSelectors = []string{
	"[itemprop=articleBody]",
	"article",
	"main",
	".entry-content",
	".post-content",
	".pattern",
	"#content",
	".content",
}

// mainContent returns the most specific content container with real text.
func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range mainContentSelectors {
		s := doc.Find(sel).First()
		if s.Length() > 0 && len([]rune(collapseSpace(s.Text()))) >= 100 {
			return s
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// labeledValues collects "label -> value" pairs from definition lists,
// two-column table rows and <strong>Label:</strong> value siblings.
// The first value seen for a label wins.
func labeledValues(root *goquery.Selection) map[string]string {
	out := make(map[string]string)
	put := func(label, value string) {
		label = strings.TrimSpace(strings.TrimRight(collapseSpace(label), ":："))
		value = strings.TrimSpace(strings.TrimLeft(collapseSpace(value), ":： "))
		if label == "" || value == "" {
			return
		}
		if _, ok := out[label]; !ok {
			out[label] = value
		}
	}

	root.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		var label string
		dl.Children().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "dt":
				label = c.Text()
			case "dd":
				put(label, c.Text())
			}
		})
	})
	root.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Children().Filter("th, td")
		if cells.Length() == 2 {
			put(cells.Eq(0).Text(), cells.Eq(1).Text())
		}
	})
	root.Find("strong, b").Each(func(_ int, s *goquery.Selection) {
		label := collapseSpace(s.Text())
		parent := collapseSpace(s.Parent().Text())
		if label == "" || !strings.HasSuffix(label, ":") && !strings.HasPrefix(strings.TrimPrefix(parent, label), ":") {
			return
		}
		if i := strings.Index(parent, label); i >= 0 {
			put(label, parent[i+len(label):])
		}
	})
	return out
}

// outline renders a DOM subtree as segmenter input: one line per block,
// "## " headings, "![alt](url)" image lines, blank lines between paragraphs.
type outline struct {
	base   *url.URL
	lines  []string
	cur    strings.Builder
	images []string
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "div": true,
	"dl": true, "fieldset": true, "figcaption": true, "figure": true, "footer": true,
	"form": true, "header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true, "ul": true,
	"dd": true, "dt": true, "caption": true,
}

var paragraphTags = map[string]bool{
	"p": true, "ul": true, "ol": true, "table": true, "dl": true, "blockquote": true,
	"pre": true, "figure": true, "section": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "svg": true,
	"iframe": true, "button": true, "select": true, "input": true,
}

func renderOutline(root *goquery.Selection, base *url.URL) (string, []string) {
	o := &outline{base: base}
	for _, n := range root.Nodes {
		o.walk(n)
	}
	o.flush()
	return strings.Join(o.lines, "\n"), o.images
}

func (o *outline) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		o.cur.WriteString(n.Data)
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			o.walk(c)
		}
		return
	}

	tag := n.Data
	switch {
	case skipTags[tag]:
		return
	case tag == "br":
		o.flush()
		return
	case tag == "img":
		o.image(n)
		return
	case tag == "h1":
		// The page title is read separately.
		o.flush()
		return
	case len(tag) == 2 && tag[0] == 'h' && tag[1] >= '2' && tag[1] <= '6':
		o.flush()
		if text := collapseSpace(nodeText(n)); text != "" {
			o.emit("## " + text)
		}
		o.collectImages(n)
		return
	case tag == "tr":
		o.row(n)
		return
	}

	block := blockTags[tag]
	if block {
		o.flush()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		o.walk(c)
	}
	if block {
		o.flush()
	}
	if paragraphTags[tag] {
		o.blank()
	}
}

func (o *outline) row(tr *html.Node) {
	o.flush()
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			cells = append(cells, collapseSpace(nodeText(c)))
		}
	}
	switch {
	case len(cells) == 2 && cells[0] != "" && cells[1] != "":
		o.emit(strings.TrimRight(cells[0], ":： ") + ": " + cells[1])
	case len(cells) > 0:
		if line := strings.Trim(strings.Join(cells, " | "), " |"); line != "" {
			o.emit(line)
		}
	}
	o.collectImages(tr)
}

func (o *outline) image(n *html.Node) {
	o.flush()
	u := imageURL(n, o.base)
	if u == "" {
		return
	}
	alt := strings.NewReplacer("[", "", "]", "").Replace(collapseSpace(attr(n, "alt")))
	o.images = append(o.images, u)
	o.emit("![" + alt + "](" + u + ")")
}

func (o *outline) collectImages(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "img" {
			o.image(c)
			continue
		}
		o.collectImages(c)
	}
}

func (o *outline) emit(line string) {
	o.lines = append(o.lines, line)
}

func (o *outline) flush() {
	if line := collapseSpace(o.cur.String()); line != "" {
		o.lines = append(o.lines, line)
	}
	o.cur.Reset()
}

func (o *outline) blank() {
	if n := len(o.lines); n > 0 && o.lines[n-1] != "" {
		o.lines = append(o.lines, "")
	}
}

// imageURL picks the best source of an <img>: lazy-load attributes, the
// widest srcset candidate, then src. Data URIs and tracking pixels are dropped.
func imageURL(n *html.Node, base *url.URL) string {
	if w, err := strconv.Atoi(attr(n, "width")); err == nil && w > 0 && w <= 2 {
		return ""
	}
	candidates := []string{
		attr(n, "data-src"),
		attr(n, "data-lazy-src"),
		attr(n, "data-original"),
		largestSrcset(firstNonEmpty(attr(n, "data-srcset"), attr(n, "srcset"))),
		attr(n, "src"),
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || strings.HasPrefix(c, "data:") {
			continue
		}
		if u := resolveURL(base, c); u != "" {
			return u
		}
	}
	return ""
}

func largestSrcset(srcset string) string {
	best, bestWidth := "", -1.0
	for _, part := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) == 0 {
			continue
		}
		width := 0.0
		if len(fields) > 1 {
			d := fields[1]
			if v, err := strconv.ParseFloat(strings.TrimRight(d, "wx"), 64); err == nil {
				width = v
			}
		}
		if width > bestWidth {
			best, bestWidth = fields[0], width
		}
	}
	return best
}

func resolveURL(base *url.URL, ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
