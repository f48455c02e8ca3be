package docxtext

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDocx(t *testing.T, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)

	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`))
	require.NoError(t, err)

	if documentXML != "" {
		w, err = zw.Create("word/document.xml")
		require.NoError(t, err)
		_, err = w.Write([]byte(documentXML))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

const simpleDoc = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>CONTRATO DE LOCACAO</w:t></w:r></w:p>
    <w:p><w:r><w:t>Locatario: </w:t></w:r><w:r><w:t>Joao Silva</w:t></w:r></w:p>
    <w:p><w:r><w:t>   </w:t></w:r></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Valor</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>R$ 2.000,00</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`

func TestExtract(t *testing.T) {
	path := writeDocx(t, simpleDoc)

	text, words, page, err := Extract(path)
	require.NoError(t, err)

	assert.Equal(t, A4, page)
	assert.Contains(t, text, "CONTRATO DE LOCACAO")
	assert.Contains(t, text, "Locatario: Joao Silva")
	assert.Contains(t, text, "R$ 2.000,00")

	require.NotEmpty(t, words)
	assert.Equal(t, "CONTRATO", words[0].Text)
	assert.Equal(t, 50.0, words[0].Left)
	assert.Equal(t, 50.0, words[0].Top)
	// 8 chars at 7pt each
	assert.Equal(t, 106.0, words[0].Right)
	assert.Equal(t, 62.0, words[0].Bottom)

	// runs in the same paragraph are joined before splitting
	var texts []string
	for _, w := range words {
		texts = append(texts, w.Text)
	}
	assert.Contains(t, texts, "Joao")
	assert.Contains(t, texts, "2.000,00")
}

func TestExtractParagraphAdvancesY(t *testing.T) {
	path := writeDocx(t, simpleDoc)

	_, words, _, err := Extract(path)
	require.NoError(t, err)

	byText := map[string]float64{}
	for _, w := range words {
		byText[w.Text] = w.Top
	}
	assert.Greater(t, byText["Locatario:"], byText["CONTRATO"])
	assert.Greater(t, byText["Valor"], byText["Locatario:"])
	// all words in one paragraph share a line
	assert.Equal(t, byText["CONTRATO"], byText["LOCACAO"])
}

func TestExtractLongParagraphWraps(t *testing.T) {
	long := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>um dois tres quatro cinco seis sete oito nove dez onze doze treze catorze quinze dezesseis dezessete dezoito dezenove vinte</w:t></w:r></w:p>
  </w:body>
</w:document>`
	path := writeDocx(t, long)

	_, words, _, err := Extract(path)
	require.NoError(t, err)
	require.NotEmpty(t, words)

	var wrapped bool
	for _, w := range words[1:] {
		if w.Top > words[0].Top {
			wrapped = true
		}
		assert.LessOrEqual(t, w.Left, wrapAt+1)
	}
	assert.True(t, wrapped, "long paragraph should wrap onto a new line")
}

func TestExtractMissingDocumentPart(t *testing.T) {
	path := writeDocx(t, "")

	_, _, _, err := Extract(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml")
}

func TestExtractNotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.docx")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, _, _, err := Extract(path)
	assert.Error(t, err)
}
