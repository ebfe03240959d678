// Package extract turns uploaded documents into plain text for the AI prompts.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEDOC  = "application/msword"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEText = "text/plain"

	// MaxTextBytes caps the text kept from any one document.
	MaxTextBytes = 1 << 20
	// maxDocumentXML caps how much of a DOCX body is inflated.
	maxDocumentXML = 16 << 20
)

var (
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrNoText          = errors.New("no extractable text")
	ErrTooLarge        = errors.New("document text too large")
)

// Extractor returns the text of a document.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType, name string) (string, error)
}

// Documents dispatches on MIME type.
type Documents struct {
	pdf *PDFExtractor
}

func NewDocuments(pdf *PDFExtractor) *Documents {
	return &Documents{pdf: pdf}
}

func (d *Documents) Extract(ctx context.Context, data []byte, mimeType, name string) (string, error) {
	var (
		text string
		err  error
	)
	switch baseType(mimeType) {
	case MIMEPDF:
		if d.pdf == nil {
			return "", fmt.Errorf("%w: pdf parser not available", ErrUnsupportedType)
		}
		text, err = d.pdf.Extract(ctx, data, name)
	case MIMEDOCX:
		text, err = extractDOCX(data)
	case MIMEDOC:
		text = printableRuns(data, 4)
	case MIMEText:
		text = decodeText(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}
	if err != nil {
		return "", err
	}
	if len(text) > MaxTextBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, len(text))
	}

	text = Normalize(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// Normalize applies NFC, drops control characters and collapses runs of blank lines.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func baseType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return printableRuns(data, 1)
}

// printableRuns keeps runs of at least min printable ASCII characters. Legacy
// Word binaries store body text this way between formatting records.
func printableRuns(data []byte, min int) string {
	var (
		b   strings.Builder
		run []byte
	)
	flush := func() {
		if len(run) >= min {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.Write(run)
		}
		run = run[:0]
	}
	for _, c := range data {
		if (c >= 0x20 && c < 0x7f) || c == '\t' {
			run = append(run, c)
			continue
		}
		flush()
	}
	flush()
	return b.String()
}
