package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxDocumentXMLPath = "word/document.xml"

// extractDOCX walks word/document.xml and keeps the text runs, turning
// paragraph ends, breaks and tabs into whitespace.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: docx is not a zip: %v", ErrExtractionFailed, err)
	}
	var body io.ReadCloser
	for _, f := range zr.File {
		if f.Name != docxDocumentXMLPath {
			continue
		}
		body, err = f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: open %s: %v", ErrExtractionFailed, f.Name, err)
		}
		break
	}
	if body == nil {
		return "", fmt.Errorf("%w: %s not found", ErrExtractionFailed, docxDocumentXMLPath)
	}
	defer body.Close()

	var b strings.Builder
	dec := xml.NewDecoder(body)
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: parse docx xml: %v", ErrExtractionFailed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
