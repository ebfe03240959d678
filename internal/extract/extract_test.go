package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDocuments_DOCX(t *testing.T) {
	data := buildDOCX(t, `<w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p><w:p><w:r><w:t>Go </w:t></w:r><w:r><w:t>Engineer</w:t></w:r></w:p>`)

	text, err := NewDocuments(nil).Extract(context.Background(), data, MIMEDOCX, "cv.docx")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nGo Engineer", text)
}

func TestDocuments_DOCXWithoutBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = NewDocuments(nil).Extract(context.Background(), buf.Bytes(), MIMEDOCX, "cv.docx")
	assert.Error(t, err)
}

func TestDocuments_PlainText(t *testing.T) {
	text, err := NewDocuments(nil).Extract(context.Background(), []byte("  Skills:\tGo,   SQL \n\n\n\nExperience "), "text/plain; charset=utf-8", "cv.txt")
	require.NoError(t, err)
	assert.Equal(t, "Skills: Go, SQL\n\nExperience", text)
}

func TestDocuments_LegacyDOC(t *testing.T) {
	data := append([]byte{0xd0, 0xcf, 0x11, 0xe0, 0x00, 0x01}, []byte("Senior Recruiter at Acme")...)
	data = append(data, 0x00, 0x02, 'a', 'b', 0x00)

	text, err := NewDocuments(nil).Extract(context.Background(), data, MIMEDOC, "cv.doc")
	require.NoError(t, err)
	assert.Equal(t, "Senior Recruiter at Acme", text)
}

func TestDocuments_EmptyIsNoText(t *testing.T) {
	_, err := NewDocuments(nil).Extract(context.Background(), []byte("   \n\t "), MIMEText, "empty.txt")
	assert.ErrorIs(t, err, ErrNoText)
}

func TestDocuments_UnsupportedType(t *testing.T) {
	_, err := NewDocuments(nil).Extract(context.Background(), []byte("x"), "image/png", "a.png")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = NewDocuments(nil).Extract(context.Background(), []byte("%PDF"), MIMEPDF, "a.pdf")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDocuments_PDF(t *testing.T) {
	data, err := os.ReadFile("testdata/resume.pdf")
	require.NoError(t, err)

	pdf, err := NewPDFExtractor(context.Background())
	require.NoError(t, err)

	text, err := NewDocuments(pdf).Extract(context.Background(), data, MIMEPDF, "resume.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe Go engineer", text)
}

func TestDocuments_PDFCorrupt(t *testing.T) {
	pdf, err := NewPDFExtractor(context.Background())
	require.NoError(t, err)

	_, err = NewDocuments(pdf).Extract(context.Background(), []byte("%PDF-1.4\nnot really\n"), MIMEPDF, "broken.pdf")
	assert.Error(t, err)
}

func TestDocuments_DOCXBombRejected(t *testing.T) {
	// inflates to well past the body cap from a zip of a few dozen KB
	data := buildDOCX(t, `<w:p><w:r><w:t>`+strings.Repeat("a", maxDocumentXML+1024)+`</w:t></w:r></w:p>`)
	require.Less(t, len(data), 1<<20)

	_, err := NewDocuments(nil).Extract(context.Background(), data, MIMEDOCX, "cv.docx")
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDocuments_DOCXTextCap(t *testing.T) {
	run := `<w:p><w:r><w:t>` + strings.Repeat("b", 64<<10) + `</w:t></w:r></w:p>`
	data := buildDOCX(t, strings.Repeat(run, MaxTextBytes/(64<<10)+2))

	_, err := NewDocuments(nil).Extract(context.Background(), data, MIMEDOCX, "cv.docx")
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDocuments_PlainTextCap(t *testing.T) {
	_, err := NewDocuments(nil).Extract(context.Background(), []byte(strings.Repeat("x", MaxTextBytes+1)), MIMEText, "big.txt")
	assert.ErrorIs(t, err, ErrTooLarge)
}
