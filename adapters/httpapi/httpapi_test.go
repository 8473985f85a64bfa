package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kompox/sandboxops/adapters/store/fsdir"
	"github.com/kompox/sandboxops/adapters/store/inmem"
	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/usecase/catalog"
	"github.com/kompox/sandboxops/usecase/chat"
	"github.com/kompox/sandboxops/usecase/inference"
	"github.com/kompox/sandboxops/usecase/project"
	"github.com/kompox/sandboxops/usecase/workspace"
)

type fakeProvisioner struct {
	exitCodes map[string]int
}

func (f *fakeProvisioner) ID() string { return "fake" }

func (f *fakeProvisioner) Version(context.Context) (string, error) { return "Fake v1.0.0", nil }

func (f *fakeProvisioner) Run(_ context.Context, dir string, args ...string) (*model.CommandResult, error) {
	res := &model.CommandResult{Command: "fake", Args: args, Dir: dir, Stdout: args[0] + " ok"}
	if code, ok := f.exitCodes[args[0]]; ok {
		res.ExitCode = code
		res.Stderr = args[0] + " broke"
		return res, nil
	}
	if args[0] == "plan" {
		if err := os.WriteFile(filepath.Join(dir, "tfplan"), []byte("plan"), 0644); err != nil {
			return nil, err
		}
	}
	return res, nil
}

type fakeInference struct {
	models []string
}

func (f *fakeInference) BaseURL() string { return "http://ollama.test" }

func (f *fakeInference) Tags(context.Context) ([]model.InferenceModel, error) {
	var out []model.InferenceModel
	for _, m := range f.models {
		out = append(out, model.InferenceModel{Name: m})
	}
	return out, nil
}

func (f *fakeInference) Version(context.Context) (string, error) { return "0.3.12", nil }

func (f *fakeInference) Generate(_ context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
	return &model.GenerateResponse{Model: req.Model, Response: "Use `aws_s3_bucket`."}, nil
}

func (f *fakeInference) Pull(context.Context, string, func(model.PullEvent)) error { return nil }

func newTestServer(t *testing.T, prov *fakeProvisioner) http.Handler {
	t.Helper()
	port := &fakeInference{models: []string{"codellama:13b-instruct"}}
	cat, err := catalog.New()
	require.NoError(t, err)
	projects := &project.UseCase{
		Repos: &project.Repos{
			Project: fsdir.NewProjectRepository(filepath.Join(t.TempDir(), "uploads")),
			Change:  inmem.NewChangeRepository(),
		},
		Inference:      port,
		Model:          "codellama:13b-instruct",
		MaxUploadBytes: 64 << 10,
	}
	s := &Server{
		Workspace: &workspace.UseCase{
			Repos: &workspace.Repos{
				Workspace: fsdir.NewWorkspaceRepository(filepath.Join(t.TempDir(), "workspaces")),
				Run:       inmem.NewRunRepository(),
			},
			Provisioner:  prov,
			ModuleSource: "../../modules/aws-sandbox",
		},
		Chat:      &chat.UseCase{Inference: port, Model: "codellama:13b-instruct", Projects: projects},
		Inference: inference.New(port, inference.Options{Model: "codellama:13b-instruct"}),
		Catalog:   cat,
		Project:   projects,
		Version:   "test",
	}
	return s.Handler()
}

func call(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeProvisioner{})
	code, body := call(t, srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	prov := body["provisioner"].(map[string]any)
	assert.Equal(t, "Fake v1.0.0", prov["version"])
}

func TestWorkspaceLifecycle(t *testing.T) {
	srv := newTestServer(t, &fakeProvisioner{})

	code, body := call(t, srv, http.MethodPost, "/api/terraform/workspaces", `{"workspaceId":"demo","variables":{"project_name":"demo"}}`)
	require.Equal(t, http.StatusCreated, code, body)
	ws := body["workspace"].(map[string]any)
	assert.Equal(t, "demo", ws["id"])

	code, body = call(t, srv, http.MethodPost, "/api/terraform/workspaces", `{"workspaceId":"demo"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, false, body["success"])

	code, body = call(t, srv, http.MethodPost, "/api/terraform/workspaces/demo/plan", "")
	assert.Equal(t, http.StatusOK, code, body)

	code, body = call(t, srv, http.MethodPut, "/api/terraform/workspaces/demo/variables", `{"variables":{"environment":"test"}}`)
	assert.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["planDiscarded"])

	code, body = call(t, srv, http.MethodGet, "/api/terraform/workspaces", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["workspaces"], 1)

	code, body = call(t, srv, http.MethodGet, "/api/terraform/workspaces/demo/runs", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["runs"], 2)

	code, _ = call(t, srv, http.MethodDelete, "/api/terraform/workspaces/demo?destroy=true", "")
	assert.Equal(t, http.StatusOK, code)

	code, body = call(t, srv, http.MethodGet, "/api/terraform/workspaces/demo", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])
}

func TestCommandFailureDetails(t *testing.T) {
	srv := newTestServer(t, &fakeProvisioner{exitCodes: map[string]int{"plan": 1}})

	code, _ := call(t, srv, http.MethodPost, "/api/terraform/workspaces", `{"workspaceId":"demo"}`)
	require.Equal(t, http.StatusCreated, code)

	code, body := call(t, srv, http.MethodPost, "/api/terraform/workspaces/demo/plan", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	details := body["details"].(map[string]any)
	assert.Equal(t, float64(1), details["exitCode"])
	assert.Equal(t, "plan broke", details["stderr"])
	assert.Nil(t, body["installationRequired"])
}

func TestCreateInitFailureReportsWorkspace(t *testing.T) {
	srv := newTestServer(t, &fakeProvisioner{exitCodes: map[string]int{"init": model.ExitCodeNotFound}})

	code, body := call(t, srv, http.MethodPost, "/api/terraform/workspaces", `{"workspaceId":"demo"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "demo", body["workspaceId"])
	assert.Equal(t, true, body["installationRequired"])
}

func TestBadRequests(t *testing.T) {
	srv := newTestServer(t, &fakeProvisioner{})
	tests := []struct {
		name         string
		method, path string
		body         string
		want         int
	}{
		{"invalid json", http.MethodPost, "/api/chat", `{"message":`, http.StatusBadRequest},
		{"missing body", http.MethodPost, "/api/chat", "", http.StatusBadRequest},
		{"empty message", http.MethodPost, "/api/chat", `{"message":"  "}`, http.StatusBadRequest},
		{"oversized body", http.MethodPost, "/api/terraform/analyze", `{"config":"` + strings.Repeat("a", maxRequestBodySize) + `"}`, http.StatusBadRequest},
		{"empty config", http.MethodPost, "/api/terraform/analyze", `{"config":""}`, http.StatusBadRequest},
		{"invalid id", http.MethodPost, "/api/terraform/workspaces", `{"workspaceId":"Bad_ID"}`, http.StatusBadRequest},
		{"invalid destroy flag", http.MethodDelete, "/api/terraform/workspaces/demo?destroy=maybe", "", http.StatusBadRequest},
		{"unknown category", http.MethodGet, "/api/terraform/help/nope", "", http.StatusNotFound},
		{"no download tracked", http.MethodGet, "/api/models/pull?model=x", "", http.StatusNotFound},
		{"download disabled", http.MethodPost, "/api/models/pull", "", http.StatusForbidden},
		{"wrong method", http.MethodPut, "/api/chat", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := call(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, code, body)
			if tt.want != http.StatusMethodNotAllowed {
				assert.Equal(t, false, body["success"])
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestChatAndCatalog(t *testing.T) {
	srv := newTestServer(t, &fakeProvisioner{})

	code, body := call(t, srv, http.MethodPost, "/api/chat", `{"message":"how do I make a bucket?"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Use `aws_s3_bucket`.", body["response"])
	assert.Contains(t, body["html"], "<code>aws_s3_bucket</code>")

	code, body = call(t, srv, http.MethodGet, "/api/terraform/resource-types", "")
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["categories"])

	code, body = call(t, srv, http.MethodGet, "/api/terraform/help/storage/s3", "")
	assert.Equal(t, http.StatusOK, code, body)

	code, body = call(t, srv, http.MethodPost, "/api/terraform/analyze", `{"config":"provider \"aws\" {}\n"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["results"])
}

func TestStatusAndMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeProvisioner{})

	code, body := call(t, srv, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, inference.StatusOK, body["status"])
	assert.Equal(t, true, body["modelAvailable"])

	code, body = call(t, srv, http.MethodGet, "/api/debug", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["connection"])
	assert.Equal(t, "../../modules/aws-sandbox", body["moduleSource"])

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}
