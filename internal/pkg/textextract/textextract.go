// Package textextract turns uploaded files into plain text.
package textextract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	TypePDF      = "pdf"
	TypeText     = "txt"
	TypeMarkdown = "md"
)

var ErrUnsupportedType = errors.New("unsupported file type")

// DetectType maps a file name to one of the supported types by extension.
func DetectType(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return TypePDF, nil
	case ".txt", ".text":
		return TypeText, nil
	case ".md", ".markdown":
		return TypeMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, filepath.Ext(filename))
	}
}

// Extract reads the whole of r and returns its text. Text and markdown are
// returned as-is with invalid UTF-8 replaced; PDFs go through the page text
// extractor. A file with no text returns "" and nil.
func Extract(fileType string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload failed: %w", err)
	}
	if len(b) == 0 {
		return "", nil
	}

	switch fileType {
	case TypeText, TypeMarkdown:
		if !utf8.Valid(b) {
			return strings.ToValidUTF8(string(b), "�"), nil
		}
		return string(b), nil
	case TypePDF:
		return extractPDF(b)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, fileType)
	}
}

func extractPDF(b []byte) (string, error) {
	pdfReader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text failed: %w", err)
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}
	return string(out), nil
}
