// Package extract turns fetched HTML into bounded plain text for analysis.
package extract

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// MaxChars bounds the text sent to the analysis provider.
	MaxChars = 15000
	// MinChars is the shortest cleaned text worth analyzing.
	MinChars = 50
)

// Whitespace regexes compiled once at package init.
var (
	reHorizontalSpace = regexp.MustCompile(`[\p{Zs}\t\f\v\r]+`)
	reBlankLines      = regexp.MustCompile(`\n{3,}`)
)

// Extract returns the cleaned, truncated text of an HTML document.
// ok is false when the cleaned text is shorter than MinChars; callers skip
// such pages without treating them as failures.
func Extract(body []byte) (text string, ok bool) {
	text = Clean(body)
	if utf8.RuneCountInString(text) < MinChars {
		return "", false
	}
	return truncateRunes(text, MaxChars), true
}

// Clean strips script, style and markup from body, decodes entities,
// collapses whitespace runs and trims. It never truncates.
func Clean(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		// html.Parse only fails on reader errors; treat the input as text.
		return normalize(string(body))
	}

	var sb strings.Builder
	collectText(doc, &sb)
	return normalize(sb.String())
}

func collectText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if skipped(n.DataAtom) {
			return
		}
	}

	block := n.Type == html.ElementNode && isBlock(n.DataAtom)
	if block {
		sb.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
	if block {
		sb.WriteByte('\n')
	}
}

func skipped(a atom.Atom) bool {
	switch a {
	case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Svg, atom.Iframe, atom.Object:
		return true
	}
	return false
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Ul, atom.Ol, atom.Tr, atom.Table,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Section, atom.Article, atom.Header, atom.Footer, atom.Nav, atom.Main, atom.Aside,
		atom.Blockquote, atom.Pre, atom.Title, atom.Dd, atom.Dt, atom.Figcaption, atom.Hr:
		return true
	}
	return false
}

// normalize collapses horizontal whitespace per line, drops leading and
// trailing spaces on each line, and reduces runs of blank lines to one.
func normalize(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(reHorizontalSpace.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// truncateRunes cuts s to at most n runes without splitting a UTF-8 sequence.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
