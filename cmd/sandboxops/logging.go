package main

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kompox/sandboxops/internal/logging"
)

// ExitCodeError propagates the exit code of a failed provisioning run to the
// process exit status.
type ExitCodeError struct {
	Code int
}

func (e ExitCodeError) Error() string { return fmt.Sprintf("exit code %d", e.Code) }

func newRunID() string {
	return uuid.NewString()[:8]
}

// withCmdRunLogger emits CMD:<operation>/S and returns a cleanup that emits
// /EOK or /EFAIL with the elapsed time.
//
//	ctx, cleanup := withCmdRunLogger(ctx, "workspace.plan", id)
//	defer func() { cleanup(err) }()
//
// ExitCodeError counts as EOK: the command ran and reported the binary's status.
func withCmdRunLogger(ctx context.Context, operation, resourceID string) (context.Context, func(err error)) {
	startAt := time.Now()

	logger := logging.FromContext(ctx).With("resourceId", resourceID)
	ctx = logging.WithLogger(ctx, logger)
	logger.Info(ctx, "CMD:"+operation+"/S")

	cleanup := func(err error) {
		elapsed := time.Since(startAt).Seconds()
		var exitCodeErr ExitCodeError
		isExitCodeErr := errors.As(err, &exitCodeErr)

		switch {
		case isExitCodeErr:
			logger.Info(ctx, "CMD:"+operation+"/EOK", "err", "", "exitCode", exitCodeErr.Code, "elapsed", elapsed)
		case err == nil:
			logger.Info(ctx, "CMD:"+operation+"/EOK", "err", "", "elapsed", elapsed)
		default:
			errStr := truncate(err.Error(), 32)
			logger.Info(ctx, "CMD:"+operation+"/EFAIL", "err", errStr, "elapsed", elapsed)
		}
	}
	return ctx, cleanup
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
