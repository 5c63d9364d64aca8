package onnx

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	clsToken = "[CLS]"
	sepToken = "[SEP]"
	padToken = "[PAD]"
	unkToken = "[UNK]"

	maxWordChars = 100
)

// Tokenizer is an uncased BERT WordPiece tokenizer.
type Tokenizer struct {
	vocab map[string]int64
	cls   int64
	sep   int64
	pad   int64
	unk   int64
}

func LoadTokenizer(vocabPath string) (*Tokenizer, error) {
	f, err := os.Open(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("open vocab failed: %w", err)
	}
	defer f.Close()
	return NewTokenizer(f)
}

// NewTokenizer reads a vocab.txt style listing, one token per line, where the
// line number is the token id.
func NewTokenizer(r io.Reader) (*Tokenizer, error) {
	vocab := make(map[string]int64)
	sc := bufio.NewScanner(r)
	var id int64
	for sc.Scan() {
		vocab[strings.TrimRight(sc.Text(), "\r")] = id
		id++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vocab failed: %w", err)
	}

	t := &Tokenizer{vocab: vocab}
	for tok, dst := range map[string]*int64{clsToken: &t.cls, sepToken: &t.sep, padToken: &t.pad, unkToken: &t.unk} {
		v, ok := vocab[tok]
		if !ok {
			return nil, fmt.Errorf("vocab is missing %s", tok)
		}
		*dst = v
	}
	return t, nil
}

// Encoding is a fixed-length model input. Positions past the text are padding
// and carry a zero attention mask.
type Encoding struct {
	IDs           []int64
	AttentionMask []int64
	TypeIDs       []int64
}

// Encode wraps the WordPiece tokens of text in [CLS] ... [SEP] and pads or
// truncates the result to maxLen.
func (t *Tokenizer) Encode(text string, maxLen int) Encoding {
	ids := make([]int64, 0, maxLen)
	ids = append(ids, t.cls)
	for _, word := range basicTokens(text) {
		if len(ids) >= maxLen-1 {
			break
		}
		ids = append(ids, t.wordPiece(word)...)
	}
	if len(ids) > maxLen-1 {
		ids = ids[:maxLen-1]
	}
	ids = append(ids, t.sep)

	enc := Encoding{
		IDs:           make([]int64, maxLen),
		AttentionMask: make([]int64, maxLen),
		TypeIDs:       make([]int64, maxLen),
	}
	for i := range enc.IDs {
		if i < len(ids) {
			enc.IDs[i] = ids[i]
			enc.AttentionMask[i] = 1
		} else {
			enc.IDs[i] = t.pad
		}
	}
	return enc
}

func (t *Tokenizer) wordPiece(word string) []int64 {
	chars := []rune(word)
	if len(chars) > maxWordChars {
		return []int64{t.unk}
	}
	var out []int64
	for start := 0; start < len(chars); {
		end := len(chars)
		found := int64(-1)
		for ; end > start; end-- {
			sub := string(chars[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := t.vocab[sub]; ok {
				found = id
				break
			}
		}
		if found < 0 {
			return []int64{t.unk}
		}
		out = append(out, found)
		start = end
	}
	return out
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// basicTokens lowercases, strips accents and splits on whitespace and
// punctuation. CJK ideographs become single-character tokens.
func basicTokens(text string) []string {
	cleaned, _, err := transform.String(stripAccents, strings.ToLower(text))
	if err != nil {
		cleaned = strings.ToLower(text)
	}

	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range cleaned {
		switch {
		case r == 0 || r == unicode.ReplacementChar || unicode.IsControl(r) && !unicode.IsSpace(r):
			continue
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
