package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxWordRunes is the longest word WordPiece will try to split; longer
// words become [UNK].
const maxWordRunes = 100

// WordPiece is an uncased BERT WordPiece tokenizer backed by a vocab.txt
// file (one token per line, line number = token id).
type WordPiece struct {
	vocab map[string]int64
	unk   int64
	cls   int64
	sep   int64
	pad   int64
}

// LoadWordPiece reads a vocab.txt file.
func LoadWordPiece(path string) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wordpiece: open vocab: %w", err)
	}
	defer f.Close()

	var tokens []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		tokens = append(tokens, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("wordpiece: read vocab: %w", err)
	}
	return NewWordPiece(tokens)
}

// NewWordPiece builds a tokenizer from an ordered token list.
func NewWordPiece(tokens []string) (*WordPiece, error) {
	w := &WordPiece{vocab: make(map[string]int64, len(tokens))}
	for i, t := range tokens {
		if _, dup := w.vocab[t]; !dup {
			w.vocab[t] = int64(i)
		}
	}
	for name, dst := range map[string]*int64{
		"[UNK]": &w.unk, "[CLS]": &w.cls, "[SEP]": &w.sep, "[PAD]": &w.pad,
	} {
		id, ok := w.vocab[name]
		if !ok {
			return nil, fmt.Errorf("wordpiece: vocab lacks %s", name)
		}
		*dst = id
	}
	return w, nil
}

// Encode returns input ids and attention mask of exactly maxTokens
// entries: [CLS] tokens... [SEP] followed by padding. Text beyond the
// model window is dropped.
func (w *WordPiece) Encode(text string, maxTokens int) (ids, mask []int64) {
	ids = make([]int64, maxTokens)
	mask = make([]int64, maxTokens)
	for i := range ids {
		ids[i] = w.pad
	}
	if maxTokens < 2 {
		return ids, mask
	}

	ids[0], mask[0] = w.cls, 1
	pos := 1
	for _, word := range basicTokens(text) {
		for _, id := range w.pieces(word) {
			if pos >= maxTokens-1 {
				break
			}
			ids[pos], mask[pos] = id, 1
			pos++
		}
	}
	ids[pos], mask[pos] = w.sep, 1
	return ids, mask
}

// Tokens returns the WordPiece tokens for text without special tokens.
func (w *WordPiece) Tokens(text string) []string {
	rev := make(map[int64]string, len(w.vocab))
	for t, id := range w.vocab {
		rev[id] = t
	}
	var out []string
	for _, word := range basicTokens(text) {
		for _, id := range w.pieces(word) {
			out = append(out, rev[id])
		}
	}
	return out
}

// pieces splits one word by greedy longest-match-first.
func (w *WordPiece) pieces(word string) []int64 {
	rs := []rune(word)
	if len(rs) > maxWordRunes {
		return []int64{w.unk}
	}
	var out []int64
	for start := 0; start < len(rs); {
		end := len(rs)
		found := int64(-1)
		for ; end > start; end-- {
			sub := string(rs[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := w.vocab[sub]; ok {
				found = id
				break
			}
		}
		if found < 0 {
			return []int64{w.unk}
		}
		out = append(out, found)
		start = end
	}
	return out
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// basicTokens lowercases, strips accents and splits on whitespace and
// punctuation, keeping punctuation marks as their own tokens.
func basicTokens(text string) []string {
	clean, _, err := transform.String(stripAccents, strings.ToLower(text))
	if err != nil {
		clean = strings.ToLower(text)
	}

	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range clean {
		switch {
		case unicode.IsSpace(r) || unicode.IsControl(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			out = append(out, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
