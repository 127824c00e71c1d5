// Package source provides the document model feeding extraction runs:
// raw file content in, stable IDs out, YAML frontmatter split away from
// the body that goes to the tokenizer.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is one parsed document ready for extraction.
type Document struct {
	// ID is a stable identifier derived from the filename and content hash.
	ID string `json:"id"`

	// Filename is the original base filename.
	Filename string `json:"filename"`

	// Content is the raw document content.
	Content string `json:"content"`

	// Frontmatter contains parsed YAML frontmatter if present.
	Frontmatter map[string]any `json:"frontmatter,omitempty"`

	// Body is the content without frontmatter. Only the body is markdown;
	// frontmatter is data and never reaches the tokenizer.
	Body string `json:"body"`
}

// Parse builds a Document from raw file content, splitting YAML
// frontmatter from the body. Frontmatter problems are never fatal: a
// missing closing delimiter or malformed YAML leaves the whole content as
// the body.
func Parse(filename string, content []byte) *Document {
	doc := &Document{
		ID:       generateID(filename, content),
		Filename: filepath.Base(filename),
		Content:  string(content),
	}

	str := string(content)
	if !strings.HasPrefix(str, "---\n") && !strings.HasPrefix(str, "---\r\n") {
		doc.Body = str
		return doc
	}

	frontmatter, body, err := splitFrontmatter(str)
	if err != nil {
		doc.Body = str
		return doc
	}
	doc.Frontmatter = frontmatter
	doc.Body = body
	return doc
}

// HasFrontmatter returns true if the document has parsed frontmatter.
func (d *Document) HasFrontmatter() bool {
	return len(d.Frontmatter) > 0
}

// Title returns the frontmatter title, or "" when absent.
func (d *Document) Title() string {
	title, _ := d.Frontmatter["title"].(string)
	return title
}

// Tags returns the frontmatter tags as strings. YAML lists decode as
// []any; a producer handing a pre-built map may use []string directly.
func (d *Document) Tags() []string {
	switch raw := d.Frontmatter["tags"].(type) {
	case []string:
		return raw
	case []any:
		var tags []string
		for _, v := range raw {
			if s, ok := v.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	}
	return nil
}

// splitFrontmatter cuts the YAML block between the opening "---" line and
// the next line starting with "---", returning the decoded map and the
// remaining body. The caller has already checked the opening delimiter.
func splitFrontmatter(content string) (map[string]any, string, error) {
	start := len("---")
	if start < len(content) && content[start] == '\r' {
		start++
	}
	if start < len(content) && content[start] == '\n' {
		start++
	}

	// A CRLF close still matches: the "\n" of its "\r\n" is found here and
	// the stray "\r" stays on the last YAML line, which the decoder accepts.
	closeIdx := strings.Index(content[start:], "\n---")
	if closeIdx == -1 {
		return nil, content, fmt.Errorf("no closing frontmatter delimiter")
	}

	yamlContent := content[start : start+closeIdx]

	bodyStart := start + closeIdx + len("\n---")
	for bodyStart < len(content) && (content[bodyStart] == '\n' || content[bodyStart] == '\r') {
		bodyStart++
	}
	body := ""
	if bodyStart < len(content) {
		body = content[bodyStart:]
	}

	var frontmatter map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &frontmatter); err != nil {
		return nil, content, fmt.Errorf("parse YAML frontmatter: %w", err)
	}
	return frontmatter, body, nil
}

// generateID creates a stable document ID from the filename and a content
// hash suffix, so renames change the readable part and edits change the
// hash part.
func generateID(filename string, content []byte) string {
	base := filepath.Base(filename)
	name := sanitizeID(strings.TrimSuffix(base, filepath.Ext(base)))

	hash := sha256.Sum256(content)
	shortHash := hex.EncodeToString(hash[:])[:12]

	return fmt.Sprintf("doc.%s.%s", name, shortHash)
}

// sanitizeID makes a string safe for use inside IDs and NATS subjects.
func sanitizeID(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			b.WriteRune('-')
		}
	}
	return b.String()
}

// ContentHash computes a SHA256 hash of the content, used for staleness
// detection by watchers.
func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
