package project

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// chatContextChanges is the number of recent changes included in chat context.
const chatContextChanges = 3

// ChatContext describes a project for a chat prompt: its structure and
// latest file changes.
func (u *UseCase) ChatContext(ctx context.Context, id string) (string, error) {
	p, err := u.get(ctx, id)
	if err != nil {
		return "", err
	}
	st, err := AnalyzeStructure(p.Dir)
	if err != nil {
		return "", err
	}
	changes, err := u.Repos.Change.ListByProject(ctx, p.ID, chatContextChanges)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Project Context:\n")
	fmt.Fprintf(&b, "- Type: %s\n", st.ProjectType)
	fmt.Fprintf(&b, "- Technologies: %s\n", strings.Join(st.DetectedTechnologies, ", "))
	fmt.Fprintf(&b, "- Files: %d\n", st.FileCount)
	fmt.Fprintf(&b, "- Main files: %s\n\n", strings.Join(st.MainFiles, ", "))
	if len(changes) > 0 {
		b.WriteString("Recent Changes:\n")
		for _, c := range changes {
			fmt.Fprintf(&b, "- %s %s (%s)\n", c.Operation, c.FilePath, c.Timestamp.Format(time.RFC3339))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
