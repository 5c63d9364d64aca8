package onnx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ids: [PAD]=0 [UNK]=1 [CLS]=2 [SEP]=3 the=4 cafe=5 play=6 ##ing=7 .=8 un=9 ##aff=10 ##able=11
const testVocab = "[PAD]\n[UNK]\n[CLS]\n[SEP]\nthe\ncafe\nplay\n##ing\n.\nun\n##aff\n##able\n"

func testTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	tok, err := NewTokenizer(strings.NewReader(testVocab))
	require.NoError(t, err)
	return tok
}

func TestEncodeWordPiece(t *testing.T) {
	enc := testTokenizer(t).Encode("The Café, playing unaffable.", 12)

	assert.Equal(t, []int64{2, 4, 5, 1, 6, 7, 9, 10, 11, 8, 3, 0}, enc.IDs)
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0}, enc.AttentionMask)
	assert.Equal(t, make([]int64, 12), enc.TypeIDs)
}

func TestEncodeTruncates(t *testing.T) {
	enc := testTokenizer(t).Encode(strings.Repeat("the ", 50), 6)
	assert.Equal(t, []int64{2, 4, 4, 4, 4, 3}, enc.IDs)
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 1}, enc.AttentionMask)
}

func TestEncodeUnknownWord(t *testing.T) {
	enc := testTokenizer(t).Encode("zzz", 4)
	assert.Equal(t, []int64{2, 1, 3, 0}, enc.IDs)
}

func TestNewTokenizerRequiresSpecialTokens(t *testing.T) {
	_, err := NewTokenizer(strings.NewReader("the\ncafe\n"))
	assert.Error(t, err)
}

func TestMeanPoolIgnoresPadding(t *testing.T) {
	hidden := []float32{
		1, 2,
		3, 4,
		100, 100,
	}
	out := MeanPool(hidden, []int64{1, 1, 0}, 2)
	assert.Equal(t, []float32{2, 3}, out)
}
