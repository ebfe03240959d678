package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// PDFExtractor extracts text with the eino PDF parser.
type PDFExtractor struct {
	parser  *pdf.PDFParser
	timeout time.Duration
}

func NewPDFExtractor(ctx context.Context) (*PDFExtractor, error) {
	// one document for the whole file rather than one per page
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("failed to create pdf parser: %w", err)
	}
	return &PDFExtractor{parser: p, timeout: 30 * time.Second}, nil
}

func (e *PDFExtractor) Extract(ctx context.Context, data []byte, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.parser.Parse(ctx, bytes.NewReader(data), einoParser.WithURI(name))
	if err != nil {
		return "", fmt.Errorf("pdf parse %s: %w", name, err)
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	return strings.Join(parts, "\n\n"), nil
}
