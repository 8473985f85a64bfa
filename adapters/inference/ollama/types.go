package ollama

// TagsResponse represents the response from the /api/tags endpoint.
type TagsResponse struct {
	Models []Model `json:"models"`
}

// Model represents a single model in the tags response.
type Model struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at"`
	Size       int64  `json:"size"`
	Digest     string `json:"digest"`
}

// VersionResponse represents the response from the /api/version endpoint.
type VersionResponse struct {
	Version string `json:"version"`
}

// GenerateRequest represents the request body for /api/generate.
type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// GenerateResponse represents a non-streaming /api/generate response.
type GenerateResponse struct {
	Model         string `json:"model"`
	CreatedAt     string `json:"created_at"`
	Response      string `json:"response"`
	Done          bool   `json:"done"`
	TotalDuration int64  `json:"total_duration"`
}

// PullRequest represents the request body for /api/pull.
type PullRequest struct {
	Model  string `json:"model"`
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// ErrorResponse is the body Ollama sends with non-2xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}
