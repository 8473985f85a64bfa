package model

import (
	"context"
	"time"
)

// InferenceModel is an installed model reported by the inference server.
type InferenceModel struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
}

// GenerateRequest is a single non-streaming completion request.
type GenerateRequest struct {
	Model   string
	Prompt  string
	Options map[string]any
}

// GenerateResponse is the completion returned by the inference server.
type GenerateResponse struct {
	Model    string
	Response string
	Duration time.Duration
}

// PullEvent is one progress event streamed during a model pull.
type PullEvent struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// InferencePort is the domain port for the local inference server.
type InferencePort interface {
	BaseURL() string
	Tags(ctx context.Context) ([]InferenceModel, error)
	Version(ctx context.Context) (string, error)
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	Pull(ctx context.Context, model string, fn func(PullEvent)) error
}
