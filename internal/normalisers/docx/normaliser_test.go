package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

func buildDocx(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const documentXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Ownership</w:t></w:r><w:r><w:t xml:space="preserve"> rules</w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>cell</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
<w:p><w:hyperlink><w:r><w:t>linked</w:t></w:r></w:hyperlink></w:p>
</w:body>
</w:document>`

func TestNormalise(t *testing.T) {
	data := buildDocx(t, map[string]string{
		"word/document.xml": documentXML,
		"docProps/core.xml": `<cp:coreProperties xmlns:cp="x" xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Rust Book</dc:title></cp:coreProperties>`,
	})

	res, err := New().Normalise(context.Background(), &domain.Upload{Filename: "book.docx", Data: data})
	require.NoError(t, err)
	assert.Equal(t, "Rust Book", res.Title)
	assert.Equal(t, "Ownership rules\ncell\nlinked", res.Content)
}

func TestNormalise_TitleFromFilename(t *testing.T) {
	data := buildDocx(t, map[string]string{"word/document.xml": documentXML})

	res, err := New().Normalise(context.Background(), &domain.Upload{Filename: "team_notes.docx", Data: data})
	require.NoError(t, err)
	assert.Equal(t, "team notes", res.Title)
}

func TestNormalise_Invalid(t *testing.T) {
	_, err := New().Normalise(context.Background(), &domain.Upload{Filename: "x.docx", Data: []byte("not a zip")})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedFormat))

	_, err = New().Normalise(context.Background(), &domain.Upload{Filename: "x.docx", Data: buildDocx(t, map[string]string{"a.txt": "x"})})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedFormat))
}
