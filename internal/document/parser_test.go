package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempFile(t *testing.T, content, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture"+ext)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func createTempPDF(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "informe.pdf")

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(0, 10, text, "", "", false)
	require.NoError(t, pdf.OutputFileAndClose(path))
	return path
}

func TestPlainTextParser(t *testing.T) {
	content := "Tasa de inflación interanual.\nSegunda línea."
	file := createTempFile(t, content, ".txt")

	text, err := NewPlainTextParser().Parse(file)
	require.NoError(t, err)
	assert.Equal(t, content, text)

	_, err = NewPlainTextParser().ParseReader(strings.NewReader("\xff\xfe\x00"), "x.bin")
	assert.ErrorIs(t, err, ErrBinaryContent)
}

func TestMarkdownParser(t *testing.T) {
	content := "# Informe\n\nEste es un archivo **markdown**.\n\n- Item 1\n- Item 2"
	file := createTempFile(t, content, ".md")

	text, err := NewMarkdownParser().Parse(file)
	require.NoError(t, err)
	assert.Contains(t, text, "Informe")
	assert.Contains(t, text, "Este es un archivo markdown .")
	assert.Contains(t, text, "Item 1")
	assert.NotContains(t, text, "<")
}

func TestParseHTML(t *testing.T) {
	page, err := ParseHTML(strings.NewReader(`<html><head><title> BCP </title><style>p{}</style></head>
<body><script>var x = 1;</script><noscript>habilite js</noscript>
<h1>Tipo   de cambio</h1><p>USD <b>7.300</b></p>
<a href="/files/informe.pdf">pdf</a><a href="">vacío</a></body></html>`))
	require.NoError(t, err)

	assert.Equal(t, "BCP", page.Title)
	assert.Equal(t, []string{"/files/informe.pdf"}, page.Links)
	assert.Contains(t, page.Text, "Tipo de cambio")
	assert.Contains(t, page.Text, "USD 7.300")
	assert.NotContains(t, page.Text, "var x")
	assert.NotContains(t, page.Text, "habilite")
	assert.NotContains(t, page.Text, "p{}")
}

func TestPDFParser(t *testing.T) {
	file := createTempPDF(t, "This is a PDF test.\nSecond line.")

	text, err := NewPDFParser().Parse(file)
	require.NoError(t, err)
	assert.Contains(t, text, "This is a PDF test.")
	assert.Contains(t, text, "Second line.")
	assert.NotContains(t, text, " Tj")
}

func TestPDFParserReader(t *testing.T) {
	file := createTempPDF(t, "Resumen financiero")
	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()

	text, err := NewPDFParser().ParseReader(f, "resumen.pdf")
	require.NoError(t, err)
	assert.Contains(t, text, "Resumen financiero")
}

func TestTextFromContentStream(t *testing.T) {
	stream := "BT /F1 12 Tf 10 20 Td (Hola \\(mundo\\)) Tj ET\nBT 10 40 Td [(Sal) -20 (do)] TJ ET"
	assert.Equal(t, "Hola (mundo)\nSaldo", textFromContentStream(stream))
}

func TestParserFactory(t *testing.T) {
	tests := []struct {
		file     string
		expected string
	}{
		{createTempFile(t, "texto plano", ".txt"), "texto plano"},
		{createTempFile(t, "# Markdown", ".md"), "Markdown"},
		{createTempFile(t, "<p>página</p>", ".html"), "página"},
		{createTempFile(t, "a;b;c", ".dat"), "a;b;c"},
		{createTempPDF(t, "PDF content"), "PDF content"},
	}

	for _, tt := range tests {
		text, err := ParseFile(tt.file)
		require.NoError(t, err, tt.file)
		assert.Contains(t, text, tt.expected)
	}
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, PDF, DetectContentType("a/B.PDF"))
	assert.Equal(t, Markdown, DetectContentType("x.markdown"))
	assert.Equal(t, HTML, DetectContentType("x.htm"))
	assert.Equal(t, PlainText, DetectContentType("x.csv"))
	assert.Equal(t, Unknown, DetectContentType("x.xlsx"))
}

func TestIsFileAndLoad(t *testing.T) {
	file := createTempFile(t, "contenido", ".txt")
	assert.True(t, IsFile(file))
	assert.False(t, IsFile(filepath.Dir(file)))
	assert.False(t, IsFile("no existe"))
	assert.False(t, IsFile(""))

	doc, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "fixture", doc.Title)
	assert.Equal(t, "contenido", doc.Content)
	assert.Equal(t, string(PlainText), doc.Meta["content_type"])
}
