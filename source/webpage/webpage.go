// Package webpage converts HTML pages into markdown suitable for the
// tokenizer. Main-content detection runs readability first and falls
// back to selector-based extraction, so navigation chrome, scripts and
// styles never reach the markdown.
package webpage

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// Page is the markdown rendition of an HTML page.
type Page struct {
	// Title comes from the <title> element, falling back to the first
	// markdown H1.
	Title string `json:"title"`

	// Markdown is the converted main content.
	Markdown string `json:"markdown"`

	// Byline is the author readability detected, when it ran.
	Byline string `json:"byline,omitempty"`
}

// Converter converts HTML to markdown with documentation-focused
// extraction.
type Converter struct {
	converter *md.Converter
}

// NewConverter creates an HTML to markdown converter.
func NewConverter() *Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Converter{converter: converter}
}

// Convert transforms HTML content into a markdown Page.
func (c *Converter) Convert(htmlContent []byte) (*Page, error) {
	title := extractHTMLTitle(htmlContent)

	content, byline := mainContent(htmlContent)

	markdown, err := c.converter.ConvertString(content)
	if err != nil {
		return nil, fmt.Errorf("convert html to markdown: %w", err)
	}
	markdown = cleanMarkdown(markdown)

	if title == "" {
		title = extractMarkdownTitle(markdown)
	}

	return &Page{Title: title, Markdown: markdown, Byline: byline}, nil
}

// mainContent returns the HTML of the page's main content area. Pages
// with enough article text go through readability; everything else gets
// the selector-based extraction.
func mainContent(htmlContent []byte) (content, byline string) {
	if readability.Check(bytes.NewReader(htmlContent)) {
		article, err := readability.FromReader(bytes.NewReader(htmlContent), nil)
		if err == nil && strings.TrimSpace(article.Content) != "" {
			return article.Content, article.Byline
		}
	}
	return extractMainContent(htmlContent), ""
}

// extractHTMLTitle walks the parse tree for the first <title> element.
func extractHTMLTitle(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return ""
	}

	stack := []*html.Node{doc}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	return ""
}

// extractMainContent picks the main content area: an explicit main,
// article or role=main element when present, otherwise the body with
// navigation and machinery elements removed.
func extractMainContent(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return string(content)
	}

	for _, selector := range []string{"main", "article", "[role=main]"} {
		if node := findElement(doc, selector); node != nil {
			return renderNode(node)
		}
	}

	removeElements(doc, []string{
		"nav", "header", "footer", "aside", "script", "style", "noscript",
		"iframe", "object", "embed", "form", "input", "button",
	})
	removeByClass(doc, []string{
		"nav", "navbar", "navigation", "sidebar", "menu", "toc",
		"table-of-contents", "footer", "header", "ad", "advertisement",
		"social", "share", "comments", "related", "breadcrumb",
	})

	if body := findElement(doc, "body"); body != nil {
		return renderNode(body)
	}
	return string(content)
}

// findElement finds the first element matching a tag name or a simple
// [attr=value] selector.
func findElement(root *html.Node, selector string) *html.Node {
	stack := []*html.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type == html.ElementNode && matchesSelector(n, selector) {
			return n
		}
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	return nil
}

func matchesSelector(n *html.Node, selector string) bool {
	if strings.HasPrefix(selector, "[") && strings.HasSuffix(selector, "]") {
		attr := strings.TrimSuffix(strings.TrimPrefix(selector, "["), "]")
		parts := strings.SplitN(attr, "=", 2)
		if len(parts) != 2 {
			return false
		}
		for _, a := range n.Attr {
			if a.Key == parts[0] && a.Val == parts[1] {
				return true
			}
		}
		return false
	}
	return n.Data == selector
}

// removeElements detaches all elements with the given tag names.
func removeElements(root *html.Node, tags []string) {
	tagSet := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagSet[tag] = true
	}
	detachMatching(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && tagSet[n.Data]
	})
}

// removeByClass detaches elements carrying any of the given class names.
func removeByClass(root *html.Node, classes []string) {
	classSet := make(map[string]bool, len(classes))
	for _, class := range classes {
		classSet[strings.ToLower(class)] = true
	}
	detachMatching(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, a := range n.Attr {
			if a.Key != "class" {
				continue
			}
			for _, c := range strings.Fields(strings.ToLower(a.Val)) {
				if classSet[c] {
					return true
				}
			}
		}
		return false
	})
}

// detachMatching collects matching nodes first and detaches after, so
// the walk never iterates a tree it is mutating. Children of a matched
// node go with it.
func detachMatching(root *html.Node, match func(*html.Node) bool) {
	var toRemove []*html.Node
	stack := []*html.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if match(n) {
			toRemove = append(toRemove, n)
			continue
		}
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	for _, n := range toRemove {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}

// cleanMarkdown collapses excessive blank lines and strips trailing
// whitespace the converter leaves behind.
func cleanMarkdown(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractMarkdownTitle returns the first H1 heading text.
func extractMarkdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
