// Package textscan detects template-engine delimiters in extracted text.
// Markdown rendered into a templating pipeline (Jinja, ERB, JSP, PHP, shell
// or Ruby interpolation) can smuggle executable expressions through
// otherwise-inert document text; collectors flag such text so downstream
// consumers can quarantine it. Detection is deliberately dumb string
// matching; nothing is parsed or rewritten. Flagging is the whole job.
package textscan

import "strings"

// templateDelimiters is the fixed opening-delimiter set, checked in order.
// Closing delimiters are irrelevant: an unpaired opener is exactly as
// dangerous to a lenient template engine as a paired one.
var templateDelimiters = []string{
	"{{",    // Jinja2, Handlebars, Go templates
	"{%",    // Jinja2 statements, Twig
	"<%=",   // ERB, JSP expressions
	"<?php", // PHP open tag
	"${",    // shell / JS template-literal / JSP EL interpolation
	"#{",    // Ruby string interpolation
}

// TemplateDelimiters returns the delimiter set the scanner matches against.
// The returned slice is a copy; callers may not extend the engine's notion
// of dangerous syntax by mutating it.
func TemplateDelimiters() []string {
	out := make([]string, len(templateDelimiters))
	copy(out, templateDelimiters)
	return out
}

// HasTemplateSyntax reports whether s contains any template delimiter.
func HasTemplateSyntax(s string) bool {
	return FindTemplateSyntax(s) != ""
}

// FindTemplateSyntax returns the first delimiter (in delimiter-set order)
// present in s, or "" when s is clean. Useful for issue details and tests
// that assert which pattern fired.
func FindTemplateSyntax(s string) string {
	if s == "" {
		return ""
	}
	for _, d := range templateDelimiters {
		if strings.Contains(s, d) {
			return d
		}
	}
	return ""
}
