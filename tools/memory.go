package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/becomeliminal/nim-memory-gateway/core"
)

// Tool names.
const (
	AddToolName          = "mirix_add"
	SystemPromptToolName = "mirix_system_prompt"
)

// MemoryService is the gateway surface the memory tools call.
type MemoryService interface {
	Add(ctx context.Context, repo string, text string) error
	SystemPrompt(ctx context.Context, repo string, conversation string) (string, error)
}

type addInput struct {
	Thought string `json:"thought,omitempty"`
	core.AddRequest
}

type systemPromptInput struct {
	Thought string `json:"thought,omitempty"`
	core.SystemPromptRequest
}

// validate checks the request tags of tool inputs.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// MemoryTools returns the add and system-prompt tools backed by svc.
func MemoryTools(svc MemoryService) []*Tool {
	return []*Tool{
		New(AddToolName).
			Description("Store a memory for a repository. Use it to remember decisions, fixes, conventions and anything worth recalling in later conversations about the same repository.").
			Schema(BuildSchemaWithThought(map[string]interface{}{
				"repo": StringProperty("Repository identifier, e.g. 'acme/widgets'. Case-sensitive."),
				"text": StringProperty("The memory to store."),
			}, true, "repo", "text")).
			Handler(func(ctx context.Context, params *Params) (*Result, error) {
				var in addInput
				if failed := decodeInput(params, &in); failed != nil {
					return failed, nil
				}
				if err := svc.Add(ctx, in.Repo, *in.Text); err != nil {
					log.Printf("[TOOLS] %s failed for repo=%q: %v", AddToolName, in.Repo, err)
					return &Result{Success: false, Error: err.Error()}, nil
				}
				return &Result{Success: true, Data: core.AddResponse{Status: core.StatusOK}}, nil
			}),

		New(SystemPromptToolName).
			Description("Retrieve the memory context of a repository relevant to a conversation. Returns an empty memory_context when nothing relevant is remembered.").
			Schema(BuildSchemaWithThought(map[string]interface{}{
				"repo":         StringProperty("Repository identifier, e.g. 'acme/widgets'. Case-sensitive."),
				"conversation": StringProperty("The conversation so far, used to pick relevant memories."),
			}, false, "repo", "conversation")).
			Handler(func(ctx context.Context, params *Params) (*Result, error) {
				var in systemPromptInput
				if failed := decodeInput(params, &in); failed != nil {
					return failed, nil
				}
				memoryContext, err := svc.SystemPrompt(ctx, in.Repo, *in.Conversation)
				if err != nil {
					log.Printf("[TOOLS] %s failed for repo=%q: %v", SystemPromptToolName, in.Repo, err)
					return &Result{Success: false, Error: err.Error()}, nil
				}
				return &Result{Success: true, Data: core.SystemPromptResponse{MemoryContext: memoryContext}}, nil
			}),
	}
}

// decodeInput unmarshals the tool input into dst and checks that every
// required field is present.
func decodeInput(params *Params, dst any) *Result {
	if err := json.Unmarshal(params.Input, dst); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("invalid input: %v", err)}
	}

	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Result{Success: false, Error: fmt.Sprintf("invalid input: %v", err)}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+" is required")
	}
	return &Result{Success: false, Error: strings.Join(msgs, "; ")}
}
