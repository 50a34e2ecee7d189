//go:build onnx

// Package onnx embeds text locally with a sentence-transformer exported to
// ONNX (all-MiniLM-L6-v2 by default). Build with -tags onnx; the ONNX Runtime
// shared library must be installed.
package onnx

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string

	// TokenizerPath is the path to the tokenizer.json file.
	TokenizerPath string

	// LibraryPath is the ONNX Runtime shared library.
	// Empty uses the runtime's default search path.
	LibraryPath string

	// Dimensions is the embedding vector size (default: 384 for all-MiniLM-L6-v2).
	Dimensions int

	// MaxSequence is the padded token length fed to the model (default: 128).
	MaxSequence int
}

// ONNXEmbedder generates embeddings using ONNX Runtime.
type ONNXEmbedder struct {
	session     *ort.DynamicAdvancedSession
	tokenizer   *wordPieceTokenizer
	dimensions  int
	maxSequence int
	mu          sync.Mutex // sessions are not safe for concurrent Run
}

// New creates a new ONNX embedder.
func New(cfg Config) (*ONNXEmbedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx: ModelPath is required")
	}
	if cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("onnx: TokenizerPath is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}
	if cfg.MaxSequence == 0 {
		cfg.MaxSequence = 128
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnx: initialize runtime: %w", err)
		}
	}

	tokenizer, err := loadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}

	log.Printf("[ONNX] Loaded %s (dims=%d, seq=%d)", cfg.ModelPath, cfg.Dimensions, cfg.MaxSequence)

	return &ONNXEmbedder{
		session:     session,
		tokenizer:   tokenizer,
		dimensions:  cfg.Dimensions,
		maxSequence: cfg.MaxSequence,
	}, nil
}

// Embed converts text to a mean-pooled, unit-length embedding vector.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputIDs, attention := e.encode(text)
	tokenTypes := make([]int64, e.maxSequence)

	shape := ort.NewShape(1, int64(e.maxSequence))
	var inputs []ort.Value
	for _, data := range [][]int64{inputIDs, attention, tokenTypes} {
		tensor, err := ort.NewTensor(shape, data)
		if err != nil {
			destroyAll(inputs)
			return nil, fmt.Errorf("onnx: create input tensor: %w", err)
		}
		inputs = append(inputs, tensor)
	}
	defer destroyAll(inputs)

	outputs := []ort.Value{nil}

	e.mu.Lock()
	err := e.session.Run(inputs, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx: inference: %w", err)
	}
	defer destroyAll(outputs)

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnx: unexpected output tensor type %T", outputs[0])
	}

	embedding, err := e.pool(hidden.GetData(), hidden.GetShape(), attention)
	if err != nil {
		return nil, err
	}
	return normalize(embedding), nil
}

// encode builds [CLS] tokens... [SEP] padded to maxSequence with its mask.
func (e *ONNXEmbedder) encode(text string) (ids, mask []int64) {
	ids = make([]int64, e.maxSequence)
	mask = make([]int64, e.maxSequence)

	tokens := e.tokenizer.encode(text)
	if len(tokens) > e.maxSequence-2 {
		tokens = tokens[:e.maxSequence-2]
	}

	ids[0], mask[0] = clsTokenID, 1
	for i, tok := range tokens {
		ids[i+1], mask[i+1] = tok, 1
	}
	end := len(tokens) + 1
	ids[end], mask[end] = sepTokenID, 1
	return ids, mask
}

// pool reduces model output to one vector. Output is either already pooled
// [1, dims] or per-token [1, seq, dims], which is mean-pooled over attended
// tokens.
func (e *ONNXEmbedder) pool(data []float32, shape ort.Shape, mask []int64) ([]float32, error) {
	embedding := make([]float32, e.dimensions)

	switch len(shape) {
	case 2:
		if len(data) < e.dimensions {
			return nil, fmt.Errorf("onnx: output has %d values, want %d", len(data), e.dimensions)
		}
		copy(embedding, data[:e.dimensions])
		return embedding, nil

	case 3:
		if shape[0] != 1 || shape[2] != int64(e.dimensions) {
			return nil, fmt.Errorf("onnx: unexpected output shape %v", shape)
		}
		seq := int(shape[1])
		var attended float32
		for i := 0; i < seq && i < len(mask); i++ {
			if mask[i] == 0 {
				continue
			}
			attended++
			row := data[i*e.dimensions : (i+1)*e.dimensions]
			for j, v := range row {
				embedding[j] += v
			}
		}
		if attended > 0 {
			for j := range embedding {
				embedding[j] /= attended
			}
		}
		return embedding, nil

	default:
		return nil, fmt.Errorf("onnx: unexpected output shape %v", shape)
	}
}

// Dimensions returns the embedding vector size.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close releases ONNX resources.
func (e *ONNXEmbedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

func destroyAll(values []ort.Value) {
	for _, v := range values {
		if v != nil {
			v.Destroy()
		}
	}
}

// normalize converts embedding to unit vector.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
