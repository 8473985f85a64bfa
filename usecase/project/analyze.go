package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/internal/logging"
	"github.com/kompox/sandboxops/internal/markdown"
	"github.com/kompox/sandboxops/internal/metrics"
	"github.com/kompox/sandboxops/usecase/chat"
)

// Analysis types accepted by Analyze.
const (
	AnalysisGeneral      = "general"
	AnalysisSecurity     = "security"
	AnalysisStructure    = "structure"
	AnalysisDependencies = "dependencies"
)

var analysisTypes = []string{AnalysisGeneral, AnalysisSecurity, AnalysisStructure, AnalysisDependencies}

// Bounds on the file content and history sent with an analysis.
const (
	maxAnalyzeFiles      = 10
	maxAnalyzeFileBytes  = 50000
	maxContextChars      = 10000
	maxPromptChars       = 2000
	analyzeRecentChanges = 5
)

type AnalyzeInput struct {
	ProjectID    string   `json:"projectId"`
	AnalysisType string   `json:"analysisType"`
	Files        []string `json:"files"`
	Model        string   `json:"model,omitempty"`
	// DryRun builds the prompt without calling the inference server.
	DryRun bool `json:"dryRun,omitempty"`
}

// AnalyzedFile is a file whose content went into the prompt.
type AnalyzedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Size    int64  `json:"size"`
	Lines   int    `json:"lines"`
}

type AnalyzeOutput struct {
	ProjectID     string                  `json:"projectId"`
	AnalysisType  string                  `json:"analysisType"`
	Structure     *model.ProjectStructure `json:"structure"`
	Files         []AnalyzedFile          `json:"files"`
	RecentChanges []*model.FileChange     `json:"recentChanges"`
	Prompt        string                  `json:"prompt"`
	Response      string                  `json:"response,omitempty"`
	HTML          string                  `json:"html,omitempty"`
	Model         string                  `json:"model,omitempty"`
	// ResponseTime is the inference wall time in seconds.
	ResponseTime float64 `json:"responseTime,omitempty"`
}

// Analyze asks the model to review a project from one of the analysis angles.
func (u *UseCase) Analyze(ctx context.Context, in *AnalyzeInput) (out *AnalyzeOutput, err error) {
	if in == nil || in.ProjectID == "" {
		return nil, fmt.Errorf("%w: project id required", model.ErrProjectInvalid)
	}
	kind := in.AnalysisType
	if kind == "" {
		kind = AnalysisGeneral
	}
	if !slices.Contains(analysisTypes, kind) {
		return nil, fmt.Errorf("%w: unknown analysis type %q, want one of %s", model.ErrProjectInvalid, kind, strings.Join(analysisTypes, ", "))
	}
	defer func() { metrics.ProjectAnalyses.WithLabelValues(kind, metrics.Result(err)).Inc() }()

	p, err := u.Repos.Project.Get(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	st, err := AnalyzeStructure(p.Dir)
	if err != nil {
		return nil, err
	}
	out = &AnalyzeOutput{ProjectID: p.ID, AnalysisType: kind, Structure: st, Files: []AnalyzedFile{}}

	files := in.Files
	if len(files) > maxAnalyzeFiles {
		files = files[:maxAnalyzeFiles]
	}
	for _, rel := range files {
		full, err := resolve(p, rel)
		if err != nil {
			return nil, err
		}
		if info, err := os.Stat(full); err != nil || !info.Mode().IsRegular() {
			continue
		}
		fc, err := readContent(full, maxAnalyzeFileBytes)
		if err != nil || fc.Error != "" {
			continue
		}
		out.Files = append(out.Files, AnalyzedFile{
			Path:    rel,
			Content: truncateRunes(fc.Content, maxContextChars),
			Size:    fc.Size,
			Lines:   fc.Lines,
		})
	}

	if out.RecentChanges, err = u.Repos.Change.ListByProject(ctx, p.ID, analyzeRecentChanges); err != nil {
		return nil, err
	}
	out.Prompt = analysisPrompt(kind, st, out.Files, out.RecentChanges)
	if in.DryRun {
		return out, nil
	}

	name := in.Model
	if name == "" {
		name = u.Model
	}
	logger := logging.FromContext(ctx).With("project", p.ID, "analysis", kind, "model", name)
	start := time.Now()
	resp, err := u.generate(ctx, name, out.Prompt)
	elapsed := time.Since(start)
	if err != nil {
		logger.Warn(ctx, "project analysis failed", "error", err, "elapsed", elapsed)
		return nil, err
	}
	out.Response = strings.TrimSpace(resp.Response)
	if out.Response == "" {
		return nil, fmt.Errorf("model %s returned an empty response", name)
	}
	if out.HTML, err = markdown.ToHTML(out.Response); err != nil {
		return nil, fmt.Errorf("rendering response: %w", err)
	}
	out.Model = name
	if resp.Model != "" {
		out.Model = resp.Model
	}
	out.ResponseTime = float64(elapsed.Round(10*time.Millisecond)) / float64(time.Second)
	logger.Info(ctx, "project analyzed", "elapsed", elapsed, "response_length", len(out.Response))
	return out, nil
}

func (u *UseCase) generate(ctx context.Context, name, prompt string) (*model.GenerateResponse, error) {
	if u.Inference == nil {
		return nil, model.ErrInferenceUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, u.timeout())
	defer cancel()
	resp, err := u.Inference.Generate(ctx, model.GenerateRequest{
		Model:   name,
		Prompt:  chat.BuildPrompt(prompt),
		Options: chat.GenerateOptions(),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, model.ErrInferenceTimeout) {
			err = fmt.Errorf("%w: %v", model.ErrInferenceTimeout, err)
		}
		return nil, err
	}
	return resp, nil
}

func analysisPrompt(kind string, st *model.ProjectStructure, files []AnalyzedFile, changes []*model.FileChange) string {
	var b strings.Builder
	techs := strings.Join(st.DetectedTechnologies, ", ")
	switch kind {
	case AnalysisSecurity:
		b.WriteString("Analyze this project for security issues:\n\n")
		fmt.Fprintf(&b, "Project Type: %s\nTechnologies: %s\nFile Count: %d\n", st.ProjectType, techs, st.FileCount)
		fmt.Fprintf(&b, "Configuration files: %s\n\n", strings.Join(st.ConfigurationFiles, ", "))
		b.WriteString("Please identify potential security vulnerabilities, insecure configurations,\nand provide recommendations for improving security.\n")
	case AnalysisStructure:
		b.WriteString("Analyze the structure and organization of this project:\n\n")
		fmt.Fprintf(&b, "Project Type: %s\nTechnologies: %s\nFile Count: %d\nDirectory Count: %d\n", st.ProjectType, techs, st.FileCount, st.DirectoryCount)
		fmt.Fprintf(&b, "Main files: %s\nSource directories: %s\n\n", strings.Join(st.MainFiles, ", "), strings.Join(st.SourceDirectories, ", "))
		b.WriteString("Please provide feedback on project organization, structure improvements,\nand best practices for this type of project.\n")
	case AnalysisDependencies:
		b.WriteString("Analyze the dependencies and configuration of this project:\n\n")
		fmt.Fprintf(&b, "Project Type: %s\nTechnologies: %s\n", st.ProjectType, techs)
		fmt.Fprintf(&b, "Configuration files found: %s\n\n", strings.Join(st.ConfigurationFiles, ", "))
		b.WriteString("Please analyze dependencies, identify potential issues, outdated packages,\nand suggest improvements.\n")
	default:
		b.WriteString("Provide a general analysis of this project:\n\n")
		fmt.Fprintf(&b, "Project Type: %s\nTechnologies: %s\nFile Count: %d\nTotal Size: %d bytes\n", st.ProjectType, techs, st.FileCount, st.TotalSize)
		fmt.Fprintf(&b, "Main files: %s\nConfiguration files: %s\n\n", strings.Join(st.MainFiles, ", "), strings.Join(st.ConfigurationFiles, ", "))
		b.WriteString("Please provide an overview, identify the project purpose,\nhighlight key components, and suggest improvements.\n")
	}
	if len(files) > 0 {
		b.WriteString("\n\nKey files content (limited):\n")
		for _, f := range files {
			fmt.Fprintf(&b, "\n--- %s ---\n", f.Path)
			b.WriteString(truncateRunes(f.Content, maxPromptChars))
			if utf8.RuneCountInString(f.Content) > maxPromptChars {
				b.WriteString("\n... (content truncated)")
			}
		}
	}
	if len(changes) > 0 {
		b.WriteString("\n\nRecent changes:\n")
		for _, c := range changes {
			fmt.Fprintf(&b, "- %s %s (%s)\n", c.Operation, c.FilePath, c.Timestamp.Format(time.RFC3339))
		}
	}
	return b.String()
}
