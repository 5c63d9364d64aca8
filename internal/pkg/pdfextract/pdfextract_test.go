package pdfextract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pdfchat/internal/domain"
)

func TestExtractEmptySetIsEmptyDocument(t *testing.T) {
	text, stats, err := New(zaptest.NewLogger(t)).Extract(nil)
	require.ErrorIs(t, err, domain.ErrEmptyDocument)
	assert.Empty(t, text)
	assert.Empty(t, stats)
}

func TestExtractUnreadableDocumentsAreEmpty(t *testing.T) {
	docs := []domain.Document{
		{Name: "garbage.pdf", Data: []byte("this is not a pdf at all")},
		{Name: "empty.pdf", Data: nil},
	}
	_, stats, err := New(zaptest.NewLogger(t)).Extract(docs)
	require.ErrorIs(t, err, domain.ErrEmptyDocument)
	require.Len(t, stats, 2)
	for _, st := range stats {
		assert.NotEmpty(t, st.Error)
		assert.Zero(t, st.Chars)
	}
	assert.Equal(t, "garbage.pdf", stats[0].Name)
	assert.Equal(t, "empty.pdf", stats[1].Name)
}

func readFixture(t *testing.T, name string) domain.Document {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return domain.Document{Name: name, Data: data}
}

func TestExtractConcatenatesPagesInOrder(t *testing.T) {
	docs := []domain.Document{readFixture(t, "handbook.pdf"), readFixture(t, "parking.pdf")}

	text, stats, err := New(zaptest.NewLogger(t)).Extract(docs)
	require.NoError(t, err)

	// each text object starts on a new line; pages and documents are joined with "\n"
	assert.Equal(t,
		"\nLunch is served at noon.\n\nBadges are required on site.\n\nParking permits renew in January.",
		text)

	require.Len(t, stats, 2)
	assert.Equal(t, DocumentStats{Name: "handbook.pdf", Pages: 3, EmptyPages: 1, Chars: 54}, stats[0])
	assert.Equal(t, DocumentStats{Name: "parking.pdf", Pages: 1, Chars: 34}, stats[1])
}

func TestExtractSkipsUnreadableDocumentAmongReadable(t *testing.T) {
	docs := []domain.Document{
		{Name: "broken.pdf", Data: []byte("%PDF-1.4 truncated")},
		readFixture(t, "parking.pdf"),
	}

	text, stats, err := New(zaptest.NewLogger(t)).Extract(docs)
	require.NoError(t, err)
	assert.Equal(t, "\nParking permits renew in January.", text)
	require.Len(t, stats, 2)
	assert.NotEmpty(t, stats[0].Error)
	assert.Empty(t, stats[1].Error)
}
