package core

// StatusOK is the acknowledgment returned by a successful add.
const StatusOK = "ok"

// AddRequest stores Text as a memory for the repository Repo.
//
// Text is a pointer so that a missing field can be told apart from an
// empty string during validation.
type AddRequest struct {
	Repo string  `json:"repo" validate:"required"`
	Text *string `json:"text" validate:"required"`
}

// AddResponse acknowledges an AddRequest.
type AddResponse struct {
	Status string `json:"status"`
}

// SystemPromptRequest asks for the memory context relevant to Conversation.
type SystemPromptRequest struct {
	Repo         string  `json:"repo" validate:"required"`
	Conversation *string `json:"conversation" validate:"required"`
}

// SystemPromptResponse carries the extracted context.
// MemoryContext is always serialized, as "" when nothing was extracted.
type SystemPromptResponse struct {
	MemoryContext string `json:"memory_context"`
}

// ErrorResponse is the body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}
