package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/internal/logging"
	"github.com/kompox/sandboxops/internal/markdown"
	"github.com/kompox/sandboxops/internal/metrics"
)

// SendInput is one user message.
type SendInput struct {
	Message string `json:"message"`
	// Model overrides the configured model.
	Model string `json:"model,omitempty"`
	// ProjectID adds the structure and recent changes of a project to the prompt.
	ProjectID string `json:"projectId,omitempty"`
}

// SendOutput is the model's reply.
type SendOutput struct {
	Response string `json:"response"`
	// HTML is the reply rendered from markdown and sanitized.
	HTML       string               `json:"html"`
	CodeBlocks []markdown.CodeBlock `json:"codeBlocks,omitempty"`
	Model      string               `json:"model"`
	// ResponseTime is the wall time in seconds, rounded to centiseconds.
	ResponseTime float64 `json:"responseTime"`
	ContextUsed  bool    `json:"contextUsed"`
	ProjectID    string  `json:"projectId,omitempty"`
}

// Send submits a message to the inference server and waits for the full reply.
func (u *UseCase) Send(ctx context.Context, in *SendInput) (*SendOutput, error) {
	if in == nil || strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("%w: message is empty", model.ErrChatInvalid)
	}
	name := in.Model
	if name == "" {
		name = u.Model
	}
	logger := logging.FromContext(ctx).With("model", name)

	var projectContext string
	if in.ProjectID != "" {
		if u.Projects == nil {
			return nil, fmt.Errorf("%w: project context is not available", model.ErrChatInvalid)
		}
		pc, err := u.Projects.ChatContext(ctx, in.ProjectID)
		if err != nil {
			return nil, err
		}
		projectContext = pc
		logger = logger.With("project", in.ProjectID)
	}

	start := time.Now()
	out, err := u.send(ctx, name, BuildContextPrompt(projectContext, strings.TrimSpace(in.Message)))
	elapsed := time.Since(start)
	metrics.ChatRequests.WithLabelValues(metrics.Result(err)).Inc()
	metrics.ChatDuration.Observe(elapsed.Seconds())
	if err != nil {
		logger.Warn(ctx, "chat failed", "error", err, "elapsed", elapsed)
		return nil, err
	}
	out.ResponseTime = roundSeconds(elapsed)
	out.ContextUsed = projectContext != ""
	out.ProjectID = in.ProjectID
	logger.Info(ctx, "chat answered", "elapsed", elapsed, "response_length", len(out.Response))
	return out, nil
}

func (u *UseCase) send(ctx context.Context, name, prompt string) (*SendOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout())
	defer cancel()

	resp, err := u.Inference.Generate(ctx, model.GenerateRequest{
		Model:   name,
		Prompt:  prompt,
		Options: GenerateOptions(),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, model.ErrInferenceTimeout) {
			err = fmt.Errorf("%w: %v", model.ErrInferenceTimeout, err)
		}
		return nil, err
	}
	text := strings.TrimSpace(resp.Response)
	if text == "" {
		return nil, fmt.Errorf("model %s returned an empty response", name)
	}
	html, err := markdown.ToHTML(text)
	if err != nil {
		return nil, fmt.Errorf("rendering response: %w", err)
	}
	if resp.Model != "" {
		name = resp.Model
	}
	return &SendOutput{
		Response:   text,
		HTML:       html,
		CodeBlocks: markdown.CodeBlocks(text),
		Model:      name,
	}, nil
}

func roundSeconds(d time.Duration) float64 {
	return float64(d.Round(10*time.Millisecond)) / float64(time.Second)
}
