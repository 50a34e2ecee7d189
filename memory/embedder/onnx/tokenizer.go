//go:build onnx

package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Special token IDs of the BERT uncased vocabulary.
const (
	clsTokenID = 101
	sepTokenID = 102
	unkTokenID = 100
)

// wordPieceTokenizer is a minimal BERT WordPiece tokenizer built from the
// "model.vocab" section of a Hugging Face tokenizer.json.
type wordPieceTokenizer struct {
	vocab map[string]int
}

func loadTokenizer(path string) (*wordPieceTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer: %w", err)
	}

	var file struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tokenizer: %w", err)
	}
	if len(file.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer %s has an empty vocabulary", path)
	}

	return &wordPieceTokenizer{vocab: file.Model.Vocab}, nil
}

// encode lowercases text, splits on whitespace and maps each word to one or
// more vocabulary IDs.
func (t *wordPieceTokenizer) encode(text string) []int64 {
	var ids []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if word == "" {
			continue
		}
		if id, ok := t.vocab[word]; ok {
			ids = append(ids, int64(id))
			continue
		}
		ids = append(ids, t.pieces(word)...)
	}
	return ids
}

// pieces splits word greedily into the longest vocabulary prefixes, marking
// continuations with "##".
func (t *wordPieceTokenizer) pieces(word string) []int64 {
	var ids []int64
	for start := 0; start < len(word); {
		end := len(word)
		matched := false
		for ; end > start; end-- {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				ids = append(ids, int64(id))
				matched = true
				break
			}
		}
		if !matched {
			ids = append(ids, unkTokenID)
			start++
			continue
		}
		start = end
	}
	return ids
}
