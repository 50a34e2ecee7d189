//go:build onnx

package main

import (
	"github.com/becomeliminal/nim-memory-gateway/config"
	"github.com/becomeliminal/nim-memory-gateway/memory"
	"github.com/becomeliminal/nim-memory-gateway/memory/embedder/onnx"
)

func newONNXEmbedder(cfg config.EmbedderConfig) (memory.Embedder, func() error, error) {
	e, err := onnx.New(onnx.Config{
		ModelPath:     cfg.ONNXModelPath,
		TokenizerPath: cfg.ONNXTokenizerPath,
		LibraryPath:   cfg.ONNXLibraryPath,
		Dimensions:    384,
	})
	if err != nil {
		return nil, nil, err
	}
	return e, e.Close, nil
}
