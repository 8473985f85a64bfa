package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kompox/sandboxops/adapters/inference/ollama"
	"github.com/kompox/sandboxops/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInference struct {
	model.InferencePort
	generate func(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error)
}

func (f *fakeInference) Generate(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
	return f.generate(ctx, req)
}

func TestSendThroughOllama(t *testing.T) {
	var got ollama.GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollama.GenerateResponse{
			Model:    got.Model,
			Response: "Use a bucket:\n\n```hcl\nresource \"aws_s3_bucket\" \"b\" {}\n```\n",
			Done:     true,
		})
	}))
	defer srv.Close()

	uc := &UseCase{Inference: ollama.New(srv.URL, nil), Model: "codellama:13b-instruct", Timeout: 5 * time.Second}
	out, err := uc.Send(context.Background(), &SendInput{Message: "  How do I make an S3 bucket?  "})
	require.NoError(t, err)

	assert.NotEmpty(t, out.Response)
	assert.Equal(t, "codellama:13b-instruct", out.Model)
	assert.Contains(t, out.HTML, `<code class="language-hcl">`)
	require.Len(t, out.CodeBlocks, 1)
	assert.Equal(t, "hcl", out.CodeBlocks[0].Language)
	assert.GreaterOrEqual(t, out.ResponseTime, 0.0)

	assert.False(t, got.Stream)
	assert.True(t, strings.HasPrefix(got.Prompt, SystemPrompt+"\n\nUser: How do I make an S3 bucket?"))
	assert.True(t, strings.HasSuffix(got.Prompt, "\n\nAssistant:"))
	assert.Equal(t, map[string]any{"temperature": 0.1, "top_p": 0.9, "top_k": float64(40)}, got.Options)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	uc := &UseCase{Inference: &fakeInference{}}
	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := uc.Send(context.Background(), &SendInput{Message: msg})
		assert.ErrorIs(t, err, model.ErrChatInvalid)
	}
}

func TestSendErrors(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(context.Context, model.GenerateRequest) (*model.GenerateResponse, error)
		wantErr error
	}{
		{
			name: "unavailable",
			fn: func(context.Context, model.GenerateRequest) (*model.GenerateResponse, error) {
				return nil, model.ErrInferenceUnavailable
			},
			wantErr: model.ErrInferenceUnavailable,
		},
		{
			name: "timeout",
			fn: func(ctx context.Context, _ model.GenerateRequest) (*model.GenerateResponse, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
			wantErr: model.ErrInferenceTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &UseCase{Inference: &fakeInference{generate: tt.fn}, Model: "m", Timeout: 20 * time.Millisecond}
			_, err := uc.Send(context.Background(), &SendInput{Message: "hi"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	uc := &UseCase{Inference: &fakeInference{generate: func(context.Context, model.GenerateRequest) (*model.GenerateResponse, error) {
		return &model.GenerateResponse{Response: "  \n"}, nil
	}}, Model: "m"}
	_, err := uc.Send(context.Background(), &SendInput{Message: "hi"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, model.ErrChatInvalid))
	assert.Contains(t, err.Error(), "empty response")
}

func TestSendModelOverride(t *testing.T) {
	var gotModel string
	uc := &UseCase{Inference: &fakeInference{generate: func(_ context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
		gotModel = req.Model
		return &model.GenerateResponse{Response: "ok"}, nil
	}}, Model: "default"}
	out, err := uc.Send(context.Background(), &SendInput{Message: "hi", Model: "llama3"})
	require.NoError(t, err)
	assert.Equal(t, "llama3", gotModel)
	assert.Equal(t, "llama3", out.Model)
}

type fakeProjects map[string]string

func (f fakeProjects) ChatContext(_ context.Context, id string) (string, error) {
	pc, ok := f[id]
	if !ok {
		return "", model.ErrProjectNotFound
	}
	return pc, nil
}

func TestSendWithProjectContext(t *testing.T) {
	var prompt string
	uc := &UseCase{
		Inference: &fakeInference{generate: func(_ context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
			prompt = req.Prompt
			return &model.GenerateResponse{Response: "ok"}, nil
		}},
		Model:    "m",
		Projects: fakeProjects{"p1": "Project Context:\n- Type: terraform\n\nRecent Changes:\n- update main.tf (2026-10-16T09:00:00Z)\n\n"},
	}

	out, err := uc.Send(context.Background(), &SendInput{Message: "What changed?", ProjectID: "p1"})
	require.NoError(t, err)
	assert.True(t, out.ContextUsed)
	assert.Equal(t, "p1", out.ProjectID)
	assert.Equal(t, SystemPrompt+"\n\nProject Context:\n- Type: terraform\n\nRecent Changes:\n- update main.tf (2026-10-16T09:00:00Z)\n\nUser: What changed?\n\nAssistant:", prompt)

	out, err = uc.Send(context.Background(), &SendInput{Message: "hi"})
	require.NoError(t, err)
	assert.False(t, out.ContextUsed)
	assert.Empty(t, out.ProjectID)
	assert.Equal(t, BuildPrompt("hi"), prompt)

	_, err = uc.Send(context.Background(), &SendInput{Message: "hi", ProjectID: "nope"})
	assert.ErrorIs(t, err, model.ErrProjectNotFound)

	uc.Projects = nil
	_, err = uc.Send(context.Background(), &SendInput{Message: "hi", ProjectID: "p1"})
	assert.ErrorIs(t, err, model.ErrChatInvalid)
}
