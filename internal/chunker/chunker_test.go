package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/domain"
)

func mustChunker(t *testing.T, cfg Config) *Chunker {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func assertOverlaps(t *testing.T, chunks []domain.Chunk, overlap int) {
	t.Helper()
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		cur := []rune(chunks[i].Text)
		require.GreaterOrEqual(t, len(prev), overlap)
		require.GreaterOrEqual(t, len(cur), overlap)
		assert.Equal(t, string(prev[len(prev)-overlap:]), string(cur[:overlap]), "chunk %d", i)
	}
}

func TestSplitSentenceScenario(t *testing.T) {
	text := strings.Repeat("A. B. C. ", 300)[:2000]
	res := mustChunker(t, Config{ChunkSize: 800, ChunkOverlap: 100, TruncationCap: 200}).Split(text)

	require.Len(t, res.Chunks, 3)
	assert.Zero(t, res.Truncated)
	for i, ch := range res.Chunks {
		assert.Equal(t, i, ch.Order)
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 900)
		assert.NotEmpty(t, strings.TrimSpace(ch.Text))
	}
	assert.True(t, strings.HasSuffix(res.Chunks[0].Text, ". "))
	assertOverlaps(t, res.Chunks, 100)
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	para := strings.Repeat("word ", 100) // 500 chars
	text := para + "\n\n" + para + "\n\n" + para
	res := mustChunker(t, Config{ChunkSize: 800, ChunkOverlap: 50}).Split(text)

	require.NotEmpty(t, res.Chunks)
	assert.True(t, strings.HasSuffix(res.Chunks[0].Text, "\n\n"))
	assert.Equal(t, 502, utf8.RuneCountInString(res.Chunks[0].Text))
	assertOverlaps(t, res.Chunks, 50)
}

func TestSplitHardCutWithoutSeparators(t *testing.T) {
	text := strings.Repeat("x", 2500)
	res := mustChunker(t, Config{ChunkSize: 1000, ChunkOverlap: 200}).Split(text)

	require.Len(t, res.Chunks, 3)
	assert.Len(t, res.Chunks[0].Text, 1000)
	assert.Len(t, res.Chunks[1].Text, 1000)
	assert.Len(t, res.Chunks[2].Text, 900)
	assertOverlaps(t, res.Chunks, 200)
}

func TestSplitCountsRunes(t *testing.T) {
	text := strings.Repeat("héllo wörld ", 200)
	res := mustChunker(t, Config{ChunkSize: 100, ChunkOverlap: 10}).Split(text)
	for _, ch := range res.Chunks {
		assert.True(t, utf8.ValidString(ch.Text))
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 110)
	}
	assertOverlaps(t, res.Chunks, 10)
}

func TestSplitDropsWhitespaceChunks(t *testing.T) {
	text := strings.Repeat(" ", 300) + "tail"
	res := mustChunker(t, Config{ChunkSize: 100, ChunkOverlap: 0}).Split(text)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, 0, res.Chunks[0].Order)
	assert.Contains(t, res.Chunks[0].Text, "tail")
}

func TestSplitTruncationKeepsFirstChunks(t *testing.T) {
	text := strings.Repeat("y", 10000)
	full := mustChunker(t, Config{ChunkSize: 100, ChunkOverlap: 0}).Split(text)
	capped := mustChunker(t, Config{ChunkSize: 100, ChunkOverlap: 0, TruncationCap: 7}).Split(text)

	require.Len(t, full.Chunks, 100)
	require.Len(t, capped.Chunks, 7)
	assert.Equal(t, 100, capped.Total)
	assert.Equal(t, 93, capped.Truncated)
	assert.Equal(t, full.Chunks[:7], capped.Chunks)
}

func TestSplitShortText(t *testing.T) {
	res := mustChunker(t, DefaultConfig()).Split("short text")
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "short text", res.Chunks[0].Text)

	assert.Empty(t, mustChunker(t, DefaultConfig()).Split("").Chunks)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	for _, cfg := range []Config{
		{ChunkSize: 0},
		{ChunkSize: 100, ChunkOverlap: 100},
		{ChunkSize: 100, ChunkOverlap: -1},
	} {
		_, err := New(cfg)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
}
