// Package collectors provides the built-in collectors for the dispatch
// engine: links, images, headings, raw HTML and tables. Each collector
// validates what it extracts (link and image targets go through urlcheck,
// text fields are scanned for template-engine delimiters) so downstream
// consumers receive records that carry their own safety verdicts.
package collectors

import (
	"github.com/c360studio/semharvest/extract"
	"github.com/c360studio/semharvest/token"
)

// Config selects collector behavior for one extraction run.
type Config struct {
	// RelativeLinks permits scheme-less link and image targets, for
	// documents whose relative references resolve against a known base.
	RelativeLinks bool `json:"relative_links" yaml:"relative_links"`

	// HTML configures the opt-in HTML fragment collector.
	HTML HTMLConfig `json:"html" yaml:"html"`
}

// Defaults returns the standard collector set in canonical registration
// order: links, images, headings, html, tables. Collectors are stateful;
// call Defaults once per warehouse.
func Defaults(cfg Config) []extract.Collector {
	return []extract.Collector{
		NewLinks(cfg.RelativeLinks),
		NewImages(cfg.RelativeLinks),
		NewHeadings(),
		NewHTML(cfg.HTML),
		NewTables(),
	}
}

// Typed accessors over Report.Results. Each returns nil when the
// collector did not run or its finalize failed.

// LinksFrom returns the link records from a dispatch report.
func LinksFrom(rep *extract.Report) []Link {
	if rep == nil {
		return nil
	}
	links, _ := rep.Results["links"].([]Link)
	return links
}

// ImagesFrom returns the image records from a dispatch report.
func ImagesFrom(rep *extract.Report) []Image {
	if rep == nil {
		return nil
	}
	images, _ := rep.Results["images"].([]Image)
	return images
}

// HeadingsFrom returns the heading records from a dispatch report.
func HeadingsFrom(rep *extract.Report) []Heading {
	if rep == nil {
		return nil
	}
	headings, _ := rep.Results["headings"].([]Heading)
	return headings
}

// HTMLFrom returns the HTML fragment records from a dispatch report.
func HTMLFrom(rep *extract.Report) []HTMLFragment {
	if rep == nil {
		return nil
	}
	fragments, _ := rep.Results["html"].([]HTMLFragment)
	return fragments
}

// TablesFrom returns the table records from a dispatch report.
func TablesFrom(rep *extract.Report) []Table {
	if rep == nil {
		return nil
	}
	tables, _ := rep.Results["tables"].([]Table)
	return tables
}

func lineOf(tok *token.Token) int {
	if tok.Map.Valid {
		return tok.Map.Start
	}
	return -1
}
