package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *CompletionRequest
		wantErr bool
	}{
		{"nil request", nil, true},
		{"no messages", &CompletionRequest{}, true},
		{"unknown role", &CompletionRequest{Messages: []Message{{Role: "tool", Content: "x"}}}, true},
		{"valid", &CompletionRequest{Messages: []Message{{Role: RoleSystem, Content: "s"}, {Role: RoleUser, Content: "hi"}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsType(err, ErrorTypeInvalidRequest))
		})
	}
}

func TestCompletionRequest_SystemPrompt_FirstWins(t *testing.T) {
	req := &CompletionRequest{Messages: []Message{
		{Role: RoleSystem, Content: "first"},
		{Role: RoleUser, Content: "hello"},
		{Role: RoleSystem, Content: "second"},
		{Role: RoleAssistant, Content: "hi"},
	}}

	system, rest := req.SystemPrompt()

	assert.Equal(t, "first", system)
	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi"},
	}, rest)
}

func TestCompletionRequest_ResolveModel(t *testing.T) {
	req := &CompletionRequest{}
	assert.Equal(t, "default", req.ResolveModel("default"))

	req.Model = "override"
	assert.Equal(t, "override", req.ResolveModel("default"))
}

func TestImageGenerationRequest_Validate(t *testing.T) {
	assert.Error(t, (*ImageGenerationRequest)(nil).Validate())
	assert.Error(t, (&ImageGenerationRequest{Size: "1024x1024"}).Validate())
	assert.NoError(t, (&ImageGenerationRequest{Prompt: "a lighthouse"}).Validate())
}

func TestEnsureRequestID(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	require.NotEmpty(t, id)
	assert.Equal(t, id, GetRequestID(ctx))

	same, again := EnsureRequestID(WithRequestID(context.Background(), "req-1"))
	assert.Equal(t, "req-1", again)
	assert.Equal(t, "req-1", GetRequestID(same))
}
