package inference

import (
	"context"
	"time"
)

// DebugOutput collects troubleshooting details.
type DebugOutput struct {
	Timestamp     time.Time   `json:"timestamp"`
	URL           string      `json:"url"`
	Connection    bool        `json:"connection"`
	Error         string      `json:"error,omitempty"`
	Models        []string    `json:"availableModels"`
	ActiveModel   string      `json:"activeModel"`
	AllowDownload bool        `json:"allowDownload"`
	Downloads     []*Progress `json:"downloads"`
}

// Debug queries the server directly, bypassing the status cache.
func (u *UseCase) Debug(ctx context.Context) (*DebugOutput, error) {
	p := u.query(ctx)
	out := &DebugOutput{
		Timestamp:     u.now().UTC(),
		URL:           u.Inference.BaseURL(),
		Connection:    p.running,
		Models:        p.models,
		ActiveModel:   u.Options.Model,
		AllowDownload: u.Options.AllowDownload,
		Downloads:     u.Downloads(),
	}
	if out.Models == nil {
		out.Models = []string{}
	}
	if p.err != nil {
		out.Error = p.err.Error()
	}
	return out, nil
}
