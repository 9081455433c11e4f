package authoring

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/wudi/pdfstudio/rules"
)

// compileRichText turns a markdown or HTML source into styled spans. The
// markup value has already passed element validation, so anything else here
// is a programming error.
func compileRichText(markup, source string) ([]rules.TextSpan, error) {
	var spans []rules.TextSpan
	switch markup {
	case "markdown":
		spans = markdownSpans(source)
	case "html":
		doc, err := html.Parse(strings.NewReader(source))
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
		spans = htmlSpans(doc)
	default:
		return nil, fmt.Errorf("unknown markup %q", markup)
	}
	if len(spans) == 0 {
		return nil, fmt.Errorf("%s source produced no text content", markup)
	}
	return spans, nil
}

// spanStyle is the inline styling accumulated while descending the parse
// tree.
type spanStyle struct {
	bold    bool
	italic  bool
	heading int
}

func markdownSpans(source string) []rules.TextSpan {
	md := goldmark.New()
	src := []byte(source)
	doc := md.Parser().Parse(gmtext.NewReader(src))

	var spans []rules.TextSpan
	var walk func(n ast.Node, style spanStyle)
	walk = func(n ast.Node, style spanStyle) {
		switch t := n.(type) {
		case *ast.Heading:
			style.heading = t.Level
			style.bold = true
		case *ast.Emphasis:
			if t.Level >= 2 {
				style.bold = true
			} else {
				style.italic = true
			}
		case *ast.Text:
			text := string(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				text += " "
			}
			if text != "" {
				spans = append(spans, rules.TextSpan{
					Text:    text,
					Bold:    style.bold,
					Italic:  style.italic,
					Heading: style.heading,
				})
			}
			return
		case *ast.CodeSpan, *ast.AutoLink:
			// Keep the literal content, drop the styling.
			if text := string(n.Text(src)); text != "" {
				spans = append(spans, rules.TextSpan{
					Text:    text,
					Bold:    style.bold,
					Italic:  style.italic,
					Heading: style.heading,
				})
			}
			return
		}
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			walk(child, style)
		}
	}
	walk(doc, spanStyle{})
	return spans
}

func htmlSpans(root *html.Node) []rules.TextSpan {
	var spans []rules.TextSpan
	var walk func(n *html.Node, style spanStyle)
	walk = func(n *html.Node, style spanStyle) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				style.heading = int(n.Data[1] - '0')
				style.bold = true
			case atom.B, atom.Strong:
				style.bold = true
			case atom.I, atom.Em:
				style.italic = true
			case atom.Script, atom.Style:
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				spans = append(spans, rules.TextSpan{
					Text:    text,
					Bold:    style.bold,
					Italic:  style.italic,
					Heading: style.heading,
				})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, style)
		}
	}
	walk(root, spanStyle{})
	return spans
}
