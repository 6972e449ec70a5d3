// Package extract converts uploaded documents into normalized plain text.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrExtractionFailed  = errors.New("document text extraction failed")
)

// Format is a document family the extractor knows how to read.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatDOC      Format = "doc"
	FormatRTF      Format = "rtf"
	FormatODT      Format = "odt"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

var mimeFormats = map[string]Format{
	"application/pdf":    FormatPDF,
	"application/x-pdf":  FormatPDF,
	"application/msword": FormatDOC,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDOCX,
	"application/rtf":                         FormatRTF,
	"text/rtf":                                FormatRTF,
	"application/vnd.oasis.opendocument.text": FormatODT,
	"text/plain":                              FormatText,
	"text/markdown":                           FormatMarkdown,
	"text/x-markdown":                         FormatMarkdown,
	"text/html":                               FormatHTML,
	"application/xhtml+xml":                   FormatHTML,
}

var extFormats = map[string]Format{
	".pdf":      FormatPDF,
	".doc":      FormatDOC,
	".docx":     FormatDOCX,
	".rtf":      FormatRTF,
	".odt":      FormatODT,
	".txt":      FormatText,
	".text":     FormatText,
	".csv":      FormatText,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".htm":      FormatHTML,
	".html":     FormatHTML,
}

// Extract returns the normalized text of raw. hint may be a MIME type, a file
// name, a bare extension, or empty; an empty or generic hint falls back to
// content sniffing. An empty result is not an error.
func Extract(raw []byte, hint string) (string, error) {
	format, err := ResolveFormat(raw, hint)
	if err != nil {
		return "", err
	}
	text, err := extractFormat(raw, format)
	if err != nil {
		return "", err
	}
	return Normalize(text), nil
}

// ResolveFormat maps a hint (or the sniffed content type) to a Format.
func ResolveFormat(raw []byte, hint string) (Format, error) {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" || hint == "application/octet-stream" {
		return Detect(raw)
	}
	if f, ok := formatFromMIME(hint); ok {
		return f, nil
	}
	if strings.Contains(hint, "/") && !strings.Contains(hint, ".") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, hint)
	}
	ext := filepath.Ext(hint)
	if ext == "" {
		ext = "." + strings.TrimPrefix(hint, ".")
	}
	if f, ok := extFormats[ext]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, hint)
}

// Detect sniffs the content type of raw.
func Detect(raw []byte) (Format, error) {
	mtype := mimetype.Detect(raw)
	for m := mtype; m != nil; m = m.Parent() {
		if f, ok := formatFromMIME(m.String()); ok {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: detected %s", ErrUnsupportedFormat, mtype.String())
}

func formatFromMIME(m string) (Format, bool) {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	f, ok := mimeFormats[strings.TrimSpace(m)]
	return f, ok
}

func extractFormat(raw []byte, format Format) (string, error) {
	switch format {
	case FormatPDF:
		return extractPDF(raw)
	case FormatDOCX:
		return extractDOCX(raw)
	case FormatDOC:
		return extractDOC(raw)
	case FormatRTF, FormatODT:
		return extractWithCat(raw, format)
	case FormatHTML:
		return extractHTML(raw)
	case FormatText, FormatMarkdown:
		return extractPlain(raw), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
