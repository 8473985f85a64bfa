package project

import (
	"time"

	"github.com/kompox/sandboxops/domain"
	"github.com/kompox/sandboxops/domain/model"
)

// Repos holds repositories needed for project use cases.
type Repos struct {
	Project domain.ProjectRepository
	Change  domain.ChangeRepository
}

// UseCase wires repositories and the inference port for project use cases.
type UseCase struct {
	Repos     *Repos
	Inference model.InferencePort
	// Model is used for analysis when the request does not name one.
	Model   string
	Timeout time.Duration
	// MaxUploadBytes bounds one upload; zero means DefaultMaxUploadBytes.
	MaxUploadBytes int64
	// Retention is the age after which CleanupStale removes a project.
	Retention time.Duration

	now func() time.Time
}

const (
	DefaultMaxUploadBytes = 500 << 20
	DefaultTimeout        = 120 * time.Second
	DefaultRetention      = 24 * time.Hour
)

// Limits applied while extracting archives and reading files.
const (
	maxExtractFiles    = 20000
	extractBytesFactor = 10
	maxReadBytes       = 1 << 20
	maxTreeDepth       = 3
)

// UploadLimit is the largest accepted upload in bytes.
func (u *UseCase) UploadLimit() int64 {
	if u.MaxUploadBytes > 0 {
		return u.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

func (u *UseCase) timeout() time.Duration {
	if u.Timeout > 0 {
		return u.Timeout
	}
	return DefaultTimeout
}

func (u *UseCase) retention() time.Duration {
	if u.Retention > 0 {
		return u.Retention
	}
	return DefaultRetention
}

func (u *UseCase) clock() time.Time {
	if u.now != nil {
		return u.now()
	}
	return time.Now()
}
