package project

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kompox/sandboxops/domain/model"
)

// indicators map technologies to the project-relative globs that reveal them.
// Order decides the reported project type when several match the same file.
var indicators = []struct {
	tech     string
	patterns []string
}{
	{"python", []string{"**/requirements.txt", "**/setup.py", "**/pyproject.toml", "**/Pipfile"}},
	{"javascript", []string{"**/package.json", "**/yarn.lock", "**/package-lock.json"}},
	{"java", []string{"**/pom.xml", "**/build.gradle", "**/build.xml"}},
	{"docker", []string{"**/Dockerfile", "**/docker-compose.yml", "**/docker-compose.yaml"}},
	{"terraform", []string{"**/main.tf", "**/*.tf"}},
	{"kubernetes", []string{"**/*.yaml", "**/*.yml"}},
	{"go", []string{"**/go.mod"}},
}

var (
	mainFiles         = []string{"main.py", "app.py", "index.js", "main.js", "index.html", "main.go"}
	sourceDirectories = []string{"src", "source", "app", "lib", "libs", "components"}
)

// AnalyzeStructure walks root and reports file counts, detected
// technologies and notable files.
func AnalyzeStructure(root string) (*model.ProjectStructure, error) {
	st := &model.ProjectStructure{
		ProjectType:          model.ProjectTypeUnknown,
		DetectedTechnologies: []string{},
		MainFiles:            []string{},
		ConfigurationFiles:   []string{},
		SourceDirectories:    []string{},
	}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			st.DirectoryCount++
			if slices.Contains(sourceDirectories, d.Name()) {
				st.SourceDirectories = append(st.SourceDirectories, rel)
			}
			return nil
		}
		st.FileCount++
		if info, err := d.Info(); err == nil && info.Mode().IsRegular() {
			st.TotalSize += info.Size()
		}
		for _, ind := range indicators {
			for _, pattern := range ind.patterns {
				if !doublestar.MatchUnvalidated(pattern, rel) {
					continue
				}
				if !slices.Contains(st.DetectedTechnologies, ind.tech) {
					st.DetectedTechnologies = append(st.DetectedTechnologies, ind.tech)
				}
				if st.ProjectType == model.ProjectTypeUnknown {
					st.ProjectType = ind.tech
				}
				if !strings.ContainsAny(path.Base(pattern), "*?[") {
					st.ConfigurationFiles = append(st.ConfigurationFiles, rel)
				}
			}
		}
		if slices.Contains(mainFiles, d.Name()) {
			st.MainFiles = append(st.MainFiles, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analyzing project structure: %w", err)
	}
	return st, nil
}

// Recommendations derives advice from a structure analysis.
func Recommendations(st *model.ProjectStructure) []string {
	out := []string{}
	if st.FileCount > 1000 {
		out = append(out, "Large project detected. Consider focusing analysis on specific modules.")
	}
	configs := make([]string, 0, len(st.ConfigurationFiles))
	for _, f := range st.ConfigurationFiles {
		configs = append(configs, path.Base(f))
	}
	switch st.ProjectType {
	case "python":
		if !slices.Contains(configs, "requirements.txt") {
			out = append(out, "Consider adding a requirements.txt file to track dependencies.")
		}
		if !slices.ContainsFunc(st.SourceDirectories, func(d string) bool { return strings.Contains(strings.ToLower(d), "test") }) {
			out = append(out, "Consider adding a tests directory for unit tests.")
		}
	case "javascript":
		if slices.Contains(configs, "package.json") {
			out = append(out, "JavaScript/Node.js project detected. Check package.json for scripts and dependencies.")
		}
	case "docker":
		out = append(out, "Docker configuration detected. Review Dockerfile and docker-compose files.")
	case "terraform":
		out = append(out, "Terraform configuration detected. Run a plan in a sandbox workspace before applying changes.")
	}
	if st.TotalSize > 100<<20 {
		out = append(out, "Large project size. Ensure no sensitive files or large binaries are included.")
	}
	return out
}
