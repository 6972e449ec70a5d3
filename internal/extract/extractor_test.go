package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf to lf", "a\r\nb\rc", "a\nb\nc"},
		{"collapse newlines", "a\n\n\n\n\nb", "a\n\nb"},
		{"keep double newline", "a\n\nb", "a\n\nb"},
		{"collapse spaces", "a     b", "a  b"},
		{"keep double space", "a  b", "a  b"},
		{"trim", "  \n\t hello \n ", "hello"},
		{"crlf runs collapse", "a\r\n\r\n\r\n\r\nb", "a\n\nb"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		hint string
		want Format
	}{
		{"application/pdf", FormatPDF},
		{"text/plain; charset=utf-8", FormatText},
		{"lecture.DOCX", FormatDOCX},
		{"notes.md", FormatMarkdown},
		{".rtf", FormatRTF},
		{"doc", FormatDOC},
		{"application/msword", FormatDOC},
		{"application/vnd.oasis.opendocument.text", FormatODT},
		{"index.html", FormatHTML},
	}
	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			got, err := ResolveFormat(nil, tt.hint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveFormat_Unsupported(t *testing.T) {
	for _, hint := range []string{"image/png", "archive.zip", "video/mp4", "sheet.xlsx"} {
		_, err := ResolveFormat([]byte("x"), hint)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, hint)
	}
}

func TestResolveFormat_SniffsWhenHintMissing(t *testing.T) {
	got, err := ResolveFormat([]byte("plain words only"), "")
	require.NoError(t, err)
	assert.Equal(t, FormatText, got)

	got, err = ResolveFormat([]byte("%PDF-1.4\n%âãÏÓ\n"), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, got)
}

func TestExtract_PlainText(t *testing.T) {
	raw := []byte("\xEF\xBB\xBFFirst line\r\n\r\n\r\n\r\nSecond     line  ")
	got, err := Extract(raw, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "First line\n\nSecond  line", got)
}

func TestExtract_InvalidUTF8IsReplaced(t *testing.T) {
	got, err := Extract([]byte("ok \xff done"), "txt")
	require.NoError(t, err)
	assert.Equal(t, "ok � done", got)
}

func TestExtract_EmptyIsNotAnError(t *testing.T) {
	got, err := Extract([]byte(" \n\n "), "notes.txt")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtract_HTML(t *testing.T) {
	raw := []byte(`<html><head><style>p{color:red}</style><script>var x=1;</script></head>
<body><h1>Photosynthesis</h1><p>Plants turn light into &amp; sugar.</p></body></html>`)
	got, err := Extract(raw, "text/html")
	require.NoError(t, err)
	assert.Contains(t, got, "Photosynthesis")
	assert.Contains(t, got, "Plants turn light into & sugar.")
	assert.NotContains(t, got, "color:red")
	assert.NotContains(t, got, "var x")
}

func TestExtract_DOCX(t *testing.T) {
	raw := buildDOCX(t, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p w:rsidR="00A1"><w:r><w:t>Cell</w:t></w:r><w:r><w:t xml:space="preserve"> biology</w:t></w:r></w:p>
<w:p><w:r><w:t>Mitochondria &amp; energy</w:t></w:r></w:p>
</w:body>
</w:document>`)
	got, err := Extract(raw, "unit1.docx")
	require.NoError(t, err)
	assert.Equal(t, "Cell biology\nMitochondria & energy", got)
}

func TestExtract_DOCXWithoutBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	_, _ = w.Write([]byte("<styles/>"))
	require.NoError(t, zw.Close())

	_, err = Extract(buf.Bytes(), "docx")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtract_CorruptedBinaries(t *testing.T) {
	garbage := []byte("this is definitely not a binary document")
	for _, hint := range []string{"application/pdf", "report.docx", "legacy.doc"} {
		_, err := Extract(garbage, hint)
		assert.ErrorIs(t, err, ErrExtractionFailed, hint)
	}
}

func TestCleanWordText(t *testing.T) {
	in := "Title\rBody\x07cell\x13 HYPERLINK \x14link\x15"
	assert.Equal(t, "Title\nBody\tcell HYPERLINK link", cleanWordText(in))
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(docxDocumentXMLPath)
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
