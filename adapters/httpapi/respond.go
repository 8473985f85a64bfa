package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kompox/sandboxops/domain/model"
)

// maxRequestBodySize caps JSON request bodies.
const maxRequestBodySize = 1 << 20

var errBadRequest = errors.New("bad request")

// decodeJSON reads the request body into v. An empty body leaves v untouched
// when optional is true.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && optional:
		return nil
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: request body is required", errBadRequest)
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body exceeds %d bytes", errBadRequest, tooLarge.Limit)
		}
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOK writes v with "success": true merged into its top-level object.
func writeOK(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, fmt.Errorf("encoding response: %w", err))
		return
	}
	body := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &body); err != nil {
		body = map[string]json.RawMessage{"data": data}
	}
	body["success"] = json.RawMessage("true")
	writeJSON(w, status, body)
}

// errorBody is the error envelope of every endpoint.
type errorBody struct {
	Success              bool          `json:"success"`
	Error                string        `json:"error"`
	Details              *errorDetails `json:"details,omitempty"`
	InstallationRequired bool          `json:"installationRequired,omitempty"`
	// WorkspaceID names a workspace that exists despite the error.
	WorkspaceID string `json:"workspaceId,omitempty"`
}

// errorDetails carries the captured output of a failed provisioner run.
type errorDetails struct {
	Operation string `json:"operation"`
	ExitCode  int    `json:"exitCode"`
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, model.ErrWorkspaceInvalid),
		errors.Is(err, model.ErrChatInvalid),
		errors.Is(err, model.ErrModelInvalid),
		errors.Is(err, model.ErrProjectInvalid),
		errors.Is(err, model.ErrConfigInvalid):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrWorkspaceNotFound),
		errors.Is(err, model.ErrCatalogNotFound),
		errors.Is(err, model.ErrProjectNotFound),
		errors.Is(err, model.ErrProjectFileNotFound),
		errors.Is(err, model.ErrModelDownloadNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrWorkspaceExists),
		errors.Is(err, model.ErrWorkspaceBusy),
		errors.Is(err, model.ErrModelAlreadyAvailable),
		errors.Is(err, model.ErrModelDownloadInProgress),
		errors.Is(err, model.ErrProjectFileExists):
		return http.StatusConflict
	case errors.Is(err, model.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, model.ErrModelDownloadDisabled):
		return http.StatusForbidden
	case errors.Is(err, model.ErrInferenceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrInferenceTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorBody(w, err, errorBody{})
}

// writeErrorBody fills body from err and writes it with the mapped status.
func writeErrorBody(w http.ResponseWriter, err error, body errorBody) {
	body.Error = err.Error()
	var cmdErr *model.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Result != nil {
		body.Details = &errorDetails{
			Operation: cmdErr.Operation,
			ExitCode:  cmdErr.Result.ExitCode,
			Stdout:    cmdErr.Result.Stdout,
			Stderr:    cmdErr.Result.Stderr,
		}
	}
	body.InstallationRequired = errors.Is(err, model.ErrProvisionerNotInstalled)
	writeJSON(w, statusFor(err), body)
}

func badRequestf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}
