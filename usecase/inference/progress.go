package inference

import (
	"fmt"
	"strings"
	"time"

	"github.com/kompox/sandboxops/domain/model"
)

// PullState is the lifecycle of a tracked download.
type PullState string

const (
	PullStarting    PullState = "starting"
	PullDownloading PullState = "downloading"
	PullCompleted   PullState = "completed"
	PullFailed      PullState = "failed"
)

// Percentages reported for the fixed pull phases. Layer downloads are
// scaled into [layerStart, layerEnd].
const (
	percentManifest = 2
	layerStart      = 5
	layerEnd        = 90
	percentVerify   = 95
	percentWrite    = 98
	percentDone     = 100
)

// Progress is the tracked state of one model download.
type Progress struct {
	Model   string    `json:"model"`
	State   PullState `json:"state"`
	Status  string    `json:"status,omitempty"`
	Message string    `json:"message"`
	Percent int       `json:"percent"`
	// Digest, Completed and Total describe the layer being downloaded.
	Digest     string     `json:"digest,omitempty"`
	Completed  int64      `json:"completed,omitempty"`
	Total      int64      `json:"total,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Active reports whether the download is still running.
func (p *Progress) Active() bool {
	return p.State == PullStarting || p.State == PullDownloading
}

// Apply folds one streamed event into p. Percent never decreases.
func (p *Progress) Apply(ev model.PullEvent, now time.Time) {
	p.UpdatedAt = now
	if ev.Error != "" {
		p.fail(ev.Error, now)
		return
	}
	status := strings.TrimSpace(ev.Status)
	lower := strings.ToLower(status)
	p.Status = status
	p.Message = status
	if p.State == PullStarting {
		p.State = PullDownloading
	}

	target := 0
	switch {
	case strings.Contains(lower, "pulling manifest"):
		target = percentManifest
	case strings.HasPrefix(lower, "pulling"):
		target = layerStart
		if ev.Total > 0 {
			p.Digest, p.Completed, p.Total = ev.Digest, ev.Completed, ev.Total
			pct := float64(ev.Completed) / float64(ev.Total) * 100
			target = layerStart + int(pct*(layerEnd-layerStart)/100)
			p.Message = fmt.Sprintf("%s: %d/%d bytes (%.1f%%)", status, ev.Completed, ev.Total, pct)
		}
	case strings.Contains(lower, "verifying"):
		target = percentVerify
	case strings.Contains(lower, "writing manifest"):
		target = percentWrite
	case lower == "success" || strings.Contains(lower, "complete"):
		p.complete(now)
		return
	case strings.Contains(lower, "error") || strings.Contains(lower, "failed"):
		p.fail(status, now)
		return
	}
	if target > p.Percent {
		p.Percent = target
	}
}

func (p *Progress) complete(now time.Time) {
	p.State = PullCompleted
	p.Percent = percentDone
	p.Message = "Download completed successfully"
	p.FinishedAt = &now
}

func (p *Progress) fail(msg string, now time.Time) {
	p.State = PullFailed
	p.Error = msg
	p.Message = msg
	p.FinishedAt = &now
}

func (p *Progress) clone() *Progress {
	cp := *p
	if p.FinishedAt != nil {
		t := *p.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}
