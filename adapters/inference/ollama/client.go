// Package ollama is an HTTP client for a local Ollama server.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kompox/sandboxops/domain/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/kompox/sandboxops/adapters/inference/ollama"

// maxLineSize bounds one streamed progress line.
const maxLineSize = 1 << 20

// Client implements model.InferencePort against the Ollama REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ model.InferencePort = (*Client)(nil)

// New returns a client for baseURL such as http://localhost:11434.
// A nil httpClient uses a client without a global timeout; callers bound
// each request with its context.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Tags lists installed models.
func (c *Client) Tags(ctx context.Context) ([]model.InferenceModel, error) {
	var tags TagsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return nil, err
	}
	out := make([]model.InferenceModel, 0, len(tags.Models))
	for _, m := range tags.Models {
		im := model.InferenceModel{Name: m.Name, Size: m.Size, Digest: m.Digest}
		if t, err := time.Parse(time.RFC3339Nano, m.ModifiedAt); err == nil {
			im.ModifiedAt = t
		}
		out = append(out, im)
	}
	return out, nil
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var v VersionResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/version", nil, &v); err != nil {
		return "", err
	}
	return v.Version, nil
}

// Generate runs a single non-streaming completion.
func (c *Client) Generate(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ollama generate")
	defer span.End()
	span.SetAttributes(attribute.String("ollama.model", req.Model), attribute.Int("ollama.prompt_length", len(req.Prompt)))

	start := time.Now()
	var resp GenerateResponse
	body := GenerateRequest{Model: req.Model, Prompt: req.Prompt, Stream: false, Options: req.Options}
	if err := c.doJSON(ctx, http.MethodPost, "/api/generate", body, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("ollama.response_length", len(resp.Response)))
	return &model.GenerateResponse{Model: resp.Model, Response: resp.Response, Duration: time.Since(start)}, nil
}

// Pull downloads a model, calling fn for each streamed progress event.
// Lines that are not JSON are reported as plain status text.
func (c *Client) Pull(ctx context.Context, name string, fn func(model.PullEvent)) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ollama pull")
	defer span.End()
	span.SetAttributes(attribute.String("ollama.model", name))

	err := c.pull(ctx, name, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) pull(ctx context.Context, name string, fn func(model.PullEvent)) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/pull", PullRequest{Model: name, Name: name, Stream: true})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev model.PullEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			ev = model.PullEvent{Status: string(line)}
		}
		fn(ev)
		if ev.Error != "" {
			return fmt.Errorf("pulling %s: %s", name, ev.Error)
		}
	}
	if err := sc.Err(); err != nil {
		return classify(ctx, fmt.Errorf("reading pull stream: %w", err))
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(ctx, fmt.Errorf("reading response: %w", err))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// do sends the request and returns the response for 2xx statuses.
func (c *Client) do(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		var er ErrorResponse
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			msg = er.Error
		}
		return nil, fmt.Errorf("ollama %s %s: %s: %s", method, path, resp.Status, msg)
	}
	return resp, nil
}

// classify maps transport failures onto the domain's unavailable/timeout errors.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", model.ErrInferenceTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", model.ErrInferenceTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", model.ErrInferenceUnavailable, err)
}
