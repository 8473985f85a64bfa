package model

import "time"

// Project is an uploaded source tree that chat and analysis can draw context from.
type Project struct {
	ID string `json:"id"`
	// Filename is the name of the uploaded file.
	Filename string `json:"filename"`
	// Dir is the project root on disk. Archives are extracted into it.
	Dir       string    `json:"-"`
	Extracted bool      `json:"extracted"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProjectStructure summarizes the files of a project.
type ProjectStructure struct {
	ProjectType          string   `json:"projectType"`
	DetectedTechnologies []string `json:"detectedTechnologies"`
	FileCount            int      `json:"fileCount"`
	DirectoryCount       int      `json:"directoryCount"`
	MainFiles            []string `json:"mainFiles"`
	ConfigurationFiles   []string `json:"configurationFiles"`
	SourceDirectories    []string `json:"sourceDirectories"`
	TotalSize            int64    `json:"totalSize"`
}

// ProjectTypeUnknown is reported when no technology indicator matched.
const ProjectTypeUnknown = "unknown"

// File change operations.
const (
	FileOperationCreate = "create"
	FileOperationUpdate = "update"
	FileOperationDelete = "delete"
)

// FileChange is one tracked edit of a project file.
type FileChange struct {
	ProjectID string    `json:"projectId"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filePath"`
	Operation string    `json:"operation"`
	OldHash   string    `json:"oldHash,omitempty"`
	NewHash   string    `json:"newHash,omitempty"`
	Summary   string    `json:"diffSummary"`
}

// ChangeSummary aggregates the change history of a project.
type ChangeSummary struct {
	TotalChanges  int            `json:"totalChanges"`
	FilesModified int            `json:"filesModified"`
	LastChange    *time.Time     `json:"lastChange"`
	Operations    map[string]int `json:"operations"`
}
