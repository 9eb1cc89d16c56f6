// Package extract converts uploaded document payloads into plain text for
// chunking. Plain text passes through unchanged; markdown is parsed and
// flattened so formatting syntax never pollutes embeddings or keyword scans.
package extract

import (
	"bytes"
	"errors"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ErrUnsupportedType is returned for media types the service cannot ingest.
var ErrUnsupportedType = errors.New("unsupported document type")

// ErrEmptyDocument is returned when extraction yields no usable text.
var ErrEmptyDocument = errors.New("document contains no text")

// FromUpload extracts plain text from an uploaded file. Supported inputs
// are plain text (.txt) and markdown (.md). Both errors are caller-input
// errors and are rejected at the boundary, never retried.
func FromUpload(filename, contentType string, data []byte) (string, error) {
	var out string
	switch {
	case isMarkdown(filename, contentType):
		out = markdownToText(data)
	case isPlainText(filename, contentType):
		out = string(data)
	default:
		return "", ErrUnsupportedType
	}

	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyDocument
	}
	return out, nil
}

func isMarkdown(filename, contentType string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".md") ||
		strings.HasPrefix(contentType, "text/markdown")
}

func isPlainText(filename, contentType string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".txt") ||
		strings.HasPrefix(contentType, "text/plain")
}

// markdownToText walks the goldmark AST and collects raw text segments,
// separating block-level nodes with newlines.
func markdownToText(source []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
		default:
			// Separate blocks so headings and paragraphs don't run together.
			if n.Type() == ast.TypeBlock && buf.Len() > 0 {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(buf.String())
}
