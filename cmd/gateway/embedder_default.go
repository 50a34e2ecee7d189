//go:build !onnx

package main

import (
	"errors"

	"github.com/becomeliminal/nim-memory-gateway/config"
	"github.com/becomeliminal/nim-memory-gateway/memory"
)

func newONNXEmbedder(config.EmbedderConfig) (memory.Embedder, func() error, error) {
	return nil, nil, errors.New("binary built without ONNX support (rebuild with -tags onnx)")
}
