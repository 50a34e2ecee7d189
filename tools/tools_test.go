package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory-gateway/core"
)

type fakeService struct {
	added  map[string][]string
	memory map[string]string
	err    error
}

func (f *fakeService) Add(ctx context.Context, repo, text string) error {
	if f.err != nil {
		return f.err
	}
	f.added[repo] = append(f.added[repo], text)
	return nil
}

func (f *fakeService) SystemPrompt(ctx context.Context, repo, conversation string) (string, error) {
	return f.memory[repo], f.err
}

func newRegistry(svc *fakeService) *Registry {
	return NewRegistry(MemoryTools(svc)...)
}

func TestMemoryTools_Definitions(t *testing.T) {
	defs := newRegistry(&fakeService{}).Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, AddToolName, defs[0].Name)
	assert.Equal(t, SystemPromptToolName, defs[1].Name)

	assert.Equal(t, []string{"repo", "text", "thought"}, defs[0].InputSchema["required"])
	assert.Equal(t, []string{"repo", "conversation"}, defs[1].InputSchema["required"])

	props := defs[1].InputSchema["properties"].(map[string]interface{})
	assert.Contains(t, props, "thought")
}

func TestMemoryTools_Add(t *testing.T) {
	svc := &fakeService{added: map[string][]string{}}
	r := newRegistry(svc)

	res, err := r.Execute(context.Background(), AddToolName, &Params{
		Input: json.RawMessage(`{"repo":"acme/widgets","text":"fixed bug #12","thought":"remember the fix"}`),
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, core.AddResponse{Status: "ok"}, res.Data)
	assert.Equal(t, []string{"fixed bug #12"}, svc.added["acme/widgets"])
}

func TestMemoryTools_SystemPrompt(t *testing.T) {
	svc := &fakeService{memory: map[string]string{"acme/widgets": "Bug #12 was fixed."}}
	r := newRegistry(svc)

	res, err := r.Execute(context.Background(), SystemPromptToolName, &Params{
		Input: json.RawMessage(`{"repo":"acme/widgets","conversation":"bug 12?"}`),
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, core.SystemPromptResponse{MemoryContext: "Bug #12 was fixed."}, res.Data)

	res, err = r.Execute(context.Background(), SystemPromptToolName, &Params{
		Input: json.RawMessage(`{"repo":"new/repo","conversation":"hello"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, core.SystemPromptResponse{MemoryContext: ""}, res.Data)
}

func TestMemoryTools_Failures(t *testing.T) {
	svc := &fakeService{err: errors.New("engine down")}
	r := newRegistry(svc)
	ctx := context.Background()

	res, err := r.Execute(ctx, AddToolName, &Params{Input: json.RawMessage(`{"repo":"a/b","text":"x"}`)})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "engine down", res.Error)

	res, err = r.Execute(ctx, AddToolName, &Params{Input: json.RawMessage(`{"text":"x"}`)})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "repo is required", res.Error)

	res, err = r.Execute(ctx, SystemPromptToolName, &Params{Input: json.RawMessage(`{not json`)})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid input")

	_, err = r.Execute(ctx, "missing_tool", &Params{})
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestMemoryTools_RequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		tool  string
		input string
		want  string
	}{
		{"add without text", AddToolName, `{"repo":"acme/widgets"}`, "text is required"},
		{"add without anything", AddToolName, `{}`, "repo is required; text is required"},
		{"add with empty repo", AddToolName, `{"repo":"","text":"x"}`, "repo is required"},
		{"system prompt without conversation", SystemPromptToolName, `{"repo":"acme/widgets"}`, "conversation is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{added: map[string][]string{}}
			res, err := newRegistry(svc).Execute(context.Background(), tt.tool, &Params{Input: json.RawMessage(tt.input)})
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Error)
			assert.Empty(t, svc.added, "nothing is stored")
		})
	}
}

func TestMemoryTools_AddEmptyText(t *testing.T) {
	svc := &fakeService{added: map[string][]string{}}

	res, err := newRegistry(svc).Execute(context.Background(), AddToolName, &Params{
		Input: json.RawMessage(`{"repo":"acme/widgets","text":""}`),
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{""}, svc.added["acme/widgets"])
}

func TestRegistry_AnthropicTools(t *testing.T) {
	params := newRegistry(&fakeService{}).AnthropicTools()
	require.Len(t, params, 2)

	raw, err := json.Marshal(params[0])
	require.NoError(t, err)

	var decoded struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		InputSchema struct {
			Type       string                 `json:"type"`
			Properties map[string]interface{} `json:"properties"`
			Required   []string               `json:"required"`
		} `json:"input_schema"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, AddToolName, decoded.Name)
	assert.NotEmpty(t, decoded.Description)
	assert.Equal(t, "object", decoded.InputSchema.Type)
	assert.Contains(t, decoded.InputSchema.Properties, "repo")
	assert.Contains(t, decoded.InputSchema.Required, "text")
}

func TestWithThought_LeavesInputAlone(t *testing.T) {
	base := ObjectSchema(map[string]interface{}{"repo": StringProperty("repo")}, "repo")
	_ = WithThought(base, true)

	assert.NotContains(t, base["properties"], "thought")
	assert.Equal(t, []string{"repo"}, base["required"])
}

func TestRegistry_ReplacesByName(t *testing.T) {
	first := New("echo").Handler(func(ctx context.Context, p *Params) (*Result, error) {
		return &Result{Success: true, Data: "first"}, nil
	})
	second := New("echo").Description("second").Handler(func(ctx context.Context, p *Params) (*Result, error) {
		return &Result{Success: true, Data: "second"}, nil
	})

	r := NewRegistry(first, second)
	require.Len(t, r.Definitions(), 1)

	res, err := r.Execute(context.Background(), "echo", &Params{})
	require.NoError(t, err)
	assert.Equal(t, "second", res.Data)
}
