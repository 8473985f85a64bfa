// Package naming generates and validates workspace identifiers.
package naming

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"

	utilvalidation "k8s.io/apimachinery/pkg/util/validation"
)

// WorkspaceIDPrefix is prepended to generated workspace IDs.
const WorkspaceIDPrefix = "workspace-"

// workspaceIDMaxLength keeps IDs usable as directory names and resource tags.
const workspaceIDMaxLength = 63

// NewCompactID returns a time-ordered 12-char lowercase base36 ID:
// 7 chars of Unix seconds followed by 5 random chars.
func NewCompactID() (string, error) {
	return newCompactIDAt(time.Now().UTC())
}

func newCompactIDAt(t time.Time) (string, error) {
	ts := t.Unix()
	if ts < 0 {
		return "", fmt.Errorf("negative timestamp not supported")
	}
	if ts >= 78364164096 { // 36^7
		return "", fmt.Errorf("timestamp too large for 7-char base36 encoding")
	}

	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	r := (uint64(b[0])<<16 | uint64(b[1])<<8 | uint64(b[2])) % 60466176 // 36^5

	return fmt.Sprintf("%07s%05s", strconv.FormatInt(ts, 36), strconv.FormatUint(r, 36)), nil
}

// NewWorkspaceID returns a fresh workspace ID of the form workspace-<compactid>.
func NewWorkspaceID() (string, error) {
	id, err := NewCompactID()
	if err != nil {
		return "", err
	}
	return WorkspaceIDPrefix + id, nil
}

// ValidateWorkspaceID checks that id is a DNS-1123 label of at most 63 chars.
// This also rules out path separators and dot segments.
func ValidateWorkspaceID(id string) error {
	if id == "" {
		return fmt.Errorf("workspace id must not be empty")
	}
	if len(id) > workspaceIDMaxLength {
		return fmt.Errorf("workspace id exceeds %d characters", workspaceIDMaxLength)
	}
	if errs := utilvalidation.IsDNS1123Label(id); len(errs) > 0 {
		return fmt.Errorf("invalid workspace id: %s", strings.Join(errs, ", "))
	}
	return nil
}
