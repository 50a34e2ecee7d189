// Package memory provides a local vector store for repository memories.
//
// Each memory is a free-text note owned by a memory-engine user. Notes are
// embedded on write and retrieved by similarity to a conversation buffer.
//
// Architecture:
//   - Store: Vector storage backend (chromem-go, in-memory or persisted to disk)
//   - Embedder: Text-to-vector conversion (hash, Ollama/OpenAI, ONNX)
//   - Manager: Orchestrates recording and retrieval
//
// Integration:
//   - RECORD: engine.AddMemory stores a note for the resolved user
//   - RETRIEVE: engine.ExtractMemoryForSystemPrompt loads notes relevant to
//     the conversation before they are condensed into a system prompt
package memory
