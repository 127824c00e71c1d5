// Package harvest runs the full extraction pipeline: parse a document,
// tokenize its body, dispatch the collector set and assemble the result
// envelope the CLI, HTTP API and publisher all share.
package harvest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/semharvest/extract"
	"github.com/c360studio/semharvest/extract/collectors"
	"github.com/c360studio/semharvest/source"
	"github.com/c360studio/semharvest/source/tokenizer"
	"github.com/c360studio/semharvest/source/webpage"
)

// Options selects limits and collector behavior for a run.
type Options struct {
	Limits     extract.Limits
	Collectors collectors.Config

	// Logger receives dispatch diagnostics. Nil means slog.Default.
	Logger *slog.Logger
}

// DocumentMeta is the document identity carried on every result.
type DocumentMeta struct {
	ID          string   `json:"id"`
	Filename    string   `json:"filename"`
	Title       string   `json:"title,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ContentHash string   `json:"content_hash"`
	Bytes       int      `json:"bytes"`
}

// Result is one extraction outcome: the document it came from plus the
// dispatch report. This is the envelope published to NATS and returned
// by the HTTP API.
type Result struct {
	Document DocumentMeta    `json:"document"`
	Report   *extract.Report `json:"report"`
}

// Markdown extracts from raw markdown content. Frontmatter is split off
// before tokenization; limit violations surface as the engine's typed
// errors before any collector runs.
func Markdown(ctx context.Context, filename string, content []byte, opts Options) (*Result, error) {
	return Document(ctx, source.Parse(filename, content), opts)
}

// Shared converter. Rule registration happens once; conversions
// afterwards are independent per call.
var htmlConverter = webpage.NewConverter()

// HTML converts an HTML page to markdown and extracts from the
// conversion. The document ID and hash derive from the markdown
// rendition, which is what the tokenizer actually saw.
func HTML(ctx context.Context, filename string, content []byte, opts Options) (*Result, error) {
	page, err := htmlConverter.Convert(content)
	if err != nil {
		return nil, fmt.Errorf("convert webpage: %w", err)
	}

	res, err := Document(ctx, source.Parse(filename, []byte(page.Markdown)), opts)
	if err != nil {
		return nil, err
	}
	if res.Document.Title == "" {
		res.Document.Title = page.Title
	}
	return res, nil
}

// Document extracts from an already parsed document.
func Document(ctx context.Context, d *source.Document, opts Options) (*Result, error) {
	raws := tokenizer.Tokenize([]byte(d.Body))

	var engineOpts []extract.Option
	if opts.Logger != nil {
		engineOpts = append(engineOpts, extract.WithLogger(opts.Logger))
	}

	wh, err := extract.New(raws, len(d.Content), opts.Limits, engineOpts...)
	if err != nil {
		return nil, err
	}
	if err := wh.Register(collectors.Defaults(opts.Collectors)...); err != nil {
		return nil, err
	}
	if err := wh.DispatchAll(ctx); err != nil {
		return nil, err
	}

	return &Result{Document: meta(d), Report: wh.Report()}, nil
}

func meta(d *source.Document) DocumentMeta {
	return DocumentMeta{
		ID:          d.ID,
		Filename:    d.Filename,
		Title:       d.Title(),
		Tags:        d.Tags(),
		ContentHash: source.ContentHash([]byte(d.Content)),
		Bytes:       len(d.Content),
	}
}
