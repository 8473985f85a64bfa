package chat

import (
	"context"
	"time"

	"github.com/kompox/sandboxops/domain/model"
)

// DefaultTimeout bounds one chat completion when UseCase.Timeout is zero.
const DefaultTimeout = 120 * time.Second

// UseCase wires the inference port for chat use cases.
type UseCase struct {
	Inference model.InferencePort
	// Model is used when the request does not name one.
	Model   string
	Timeout time.Duration
	// Projects supplies context for messages that name a project. Nil
	// rejects such messages.
	Projects ProjectContext
}

// ProjectContext describes an uploaded project for inclusion in a prompt.
type ProjectContext interface {
	ChatContext(ctx context.Context, projectID string) (string, error)
}

func (u *UseCase) timeout() time.Duration {
	if u.Timeout > 0 {
		return u.Timeout
	}
	return DefaultTimeout
}
