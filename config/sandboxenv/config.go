package sandboxenv

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names
const (
	SandboxRootEnvKey = "SANDBOX_ROOT"
	SandboxDirEnvKey  = "SANDBOX_DIR"
)

// Directory and file names
const (
	SandboxDirName = ".sandbox"
	ConfigFileName = "config.yml"
)

// Env holds the resolved SANDBOX_ROOT, SANDBOX_DIR, and the effective configuration.
type Env struct {
	SandboxRoot string // Resolved SANDBOX_ROOT (project directory)
	SandboxDir  string // Resolved SANDBOX_DIR (typically $SANDBOX_ROOT/.sandbox)
	Found       bool   // True when .sandbox/config.yml was loaded
	Config      Config
}

// Config is the content of .sandbox/config.yml.
type Config struct {
	Version     int         `yaml:"version"`
	Server      Server      `yaml:"server"`
	Provisioner Provisioner `yaml:"provisioner"`
	Inference   Inference   `yaml:"inference"`
	Projects    Projects    `yaml:"projects"`
	Store       Store       `yaml:"store,omitempty"`
	Logging     Logging     `yaml:"logging,omitempty"`
	Tracing     Tracing     `yaml:"tracing,omitempty"`
}

// Server configures the HTTP API.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Provisioner configures the external provisioning binary and workspace layout.
type Provisioner struct {
	Driver       string `yaml:"driver"`                 // terraform | tofu
	Binary       string `yaml:"binary,omitempty"`       // Path override for the binary
	WorkspaceDir string `yaml:"workspaceDir"`           // Parent directory of workspaces
	ModuleSource string `yaml:"moduleSource,omitempty"` // Module source written to main.tf
	// OperationTimeout bounds one lifecycle operation. Runs are not tied to the
	// caller's connection; they are interrupted only when this expires.
	OperationTimeout time.Duration `yaml:"operationTimeout,omitempty"`
}

// Inference configures the local Ollama server.
type Inference struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Model          string        `yaml:"model"`
	ChatTimeout    time.Duration `yaml:"chatTimeout"`
	AllowDownload  bool          `yaml:"allowDownload"`
	StatusCacheTTL time.Duration `yaml:"statusCacheTTL,omitempty"`
}

// Projects configures uploaded project storage.
type Projects struct {
	Dir         string        `yaml:"dir"`
	MaxUploadMB int           `yaml:"maxUploadMB"`
	Retention   time.Duration `yaml:"retention"`       // Projects older than this are removed; 0 disables the server sweep
	Cleanup     time.Duration `yaml:"cleanupInterval"` // How often the server sweeps old projects
}

// Store configures the run history store.
type Store struct {
	DBURL string `yaml:"dbURL,omitempty"` // memory: | sqlite:<path>
}

// Logging represents the logging configuration.
type Logging struct {
	Dir           string `yaml:"dir,omitempty"`
	Format        string `yaml:"format,omitempty"`
	Level         string `yaml:"level,omitempty"`
	Output        string `yaml:"output,omitempty"`
	RetentionDays int    `yaml:"retentionDays,omitempty"`
	MaxSizeMB     int    `yaml:"maxSizeMB,omitempty"`
	MaxBackups    int    `yaml:"maxBackups,omitempty"`
}

// Tracing enables span export in stdout-trace JSON form.
type Tracing struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Output  string `yaml:"output,omitempty"` // "-" or a path relative to the log dir
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Version: 1,
		Server:  Server{Host: "0.0.0.0", Port: 5000},
		Provisioner: Provisioner{
			Driver:           "terraform",
			WorkspaceDir:     "$SANDBOX_ROOT/data/terraform_workspaces",
			ModuleSource:     "../../modules/aws-sandbox",
			OperationTimeout: 30 * time.Minute,
		},
		Inference: Inference{
			Host:           "localhost",
			Port:           11434,
			Model:          "codellama:13b-instruct",
			ChatTimeout:    120 * time.Second,
			AllowDownload:  true,
			StatusCacheTTL: 5 * time.Second,
		},
		Projects: Projects{
			Dir:         "$SANDBOX_ROOT/data/uploads",
			MaxUploadMB: 500,
			Retention:   24 * time.Hour,
			Cleanup:     time.Hour,
		},
		Store: Store{DBURL: "sqlite:$SANDBOX_DIR/sandboxops.db"},
		Logging: Logging{
			Dir:           "$SANDBOX_DIR/logs",
			Format:        "json",
			Level:         "INFO",
			RetentionDays: 7,
			MaxSizeMB:     50,
			MaxBackups:    5,
		},
	}
}

// Resolve discovers SANDBOX_ROOT and SANDBOX_DIR, loads .sandbox/config.yml
// over the defaults, and applies environment overrides from lookup.
//
// Resolution order for SANDBOX_ROOT:
//  1. sandboxRoot parameter (from --sandbox-root flag or SANDBOX_ROOT env)
//  2. Upward search from workDir for a parent containing .sandbox/
//  3. workDir itself
//
// SANDBOX_DIR defaults to $SANDBOX_ROOT/.sandbox.
func Resolve(sandboxRoot, sandboxDir, workDir string, lookup func(string) (string, bool)) (*Env, error) {
	if sandboxRoot == "" {
		found, err := searchForSandboxRoot(workDir)
		if err != nil {
			return nil, fmt.Errorf("searching for %s directory: %w", SandboxDirName, err)
		}
		sandboxRoot = found
		if sandboxRoot == "" {
			sandboxRoot = workDir
		}
	}

	root, err := filepath.Abs(sandboxRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving SANDBOX_ROOT to absolute path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("SANDBOX_ROOT %q does not exist: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("SANDBOX_ROOT %q is not a directory", root)
	}

	if sandboxDir == "" {
		sandboxDir = filepath.Join(root, SandboxDirName)
	}
	dir, err := filepath.Abs(sandboxDir)
	if err != nil {
		return nil, fmt.Errorf("resolving SANDBOX_DIR to absolute path: %w", err)
	}

	e := &Env{SandboxRoot: root, SandboxDir: dir, Config: Default()}
	if err := e.loadConfigFile(); err != nil {
		return nil, err
	}
	if lookup != nil {
		if err := e.applyEnv(lookup); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// searchForSandboxRoot returns the nearest ancestor of startDir containing .sandbox/,
// or an empty string if none exists.
func searchForSandboxRoot(startDir string) (string, error) {
	current, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}
	for {
		if info, err := os.Stat(filepath.Join(current, SandboxDirName)); err == nil && info.IsDir() {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", nil
		}
		current = parent
	}
}

// loadConfigFile overlays .sandbox/config.yml on the current config.
// A missing file is not an error.
func (e *Env) loadConfigFile() error {
	configPath := filepath.Join(e.SandboxDir, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %q: %w", configPath, err)
	}
	if err := yaml.Unmarshal(data, &e.Config); err != nil {
		return fmt.Errorf("parsing config file %q: %w", configPath, err)
	}
	e.Found = true
	return nil
}

// applyEnv applies the deployment environment variables on top of the config file.
func (e *Env) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = n
		}
		return nil
	}

	c := &e.Config
	str("HOST", &c.Server.Host)
	if err := num("PORT", &c.Server.Port); err != nil {
		return err
	}
	str("OLLAMA_HOST", &c.Inference.Host)
	if err := num("OLLAMA_PORT", &c.Inference.Port); err != nil {
		return err
	}
	str("MODEL_NAME", &c.Inference.Model)
	str("TERRAFORM_WORKSPACE_DIR", &c.Provisioner.WorkspaceDir)
	str("UPLOAD_FOLDER", &c.Projects.Dir)
	str("SANDBOX_PROVISIONER", &c.Provisioner.Driver)
	str("SANDBOX_DB_URL", &c.Store.DBURL)
	if v, ok := lookup("ALLOW_MODEL_DOWNLOAD"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ALLOW_MODEL_DOWNLOAD %q: %w", v, err)
		}
		c.Inference.AllowDownload = b
	}
	return nil
}

// ExpandVars replaces $SANDBOX_ROOT and $SANDBOX_DIR in the given string.
func (e *Env) ExpandVars(s string) string {
	s = strings.ReplaceAll(s, "$SANDBOX_ROOT", e.SandboxRoot)
	s = strings.ReplaceAll(s, "$SANDBOX_DIR", e.SandboxDir)
	return s
}

// ResolvePath expands variables and makes a relative path absolute against SANDBOX_ROOT.
func (e *Env) ResolvePath(p string) string {
	p = e.ExpandVars(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.SandboxRoot, p)
}

// WorkspaceDir returns the absolute parent directory of workspaces.
func (e *Env) WorkspaceDir() string { return e.ResolvePath(e.Config.Provisioner.WorkspaceDir) }

// ProjectDir returns the absolute parent directory of uploaded projects.
func (e *Env) ProjectDir() string { return e.ResolvePath(e.Config.Projects.Dir) }

// DBURL returns the store URL with $SANDBOX_ROOT and $SANDBOX_DIR expanded.
func (e *Env) DBURL() string { return e.ExpandVars(e.Config.Store.DBURL) }

// LogDir returns the absolute log directory.
func (e *Env) LogDir() string { return e.ResolvePath(e.Config.Logging.Dir) }

// InferenceURL returns the base URL of the Ollama server.
// OLLAMA_HOST may already carry a scheme and port.
func (e *Env) InferenceURL() string {
	h := e.Config.Inference.Host
	if strings.HasPrefix(h, "http://") || strings.HasPrefix(h, "https://") {
		return strings.TrimRight(h, "/")
	}
	return fmt.Sprintf("http://%s:%d", h, e.Config.Inference.Port)
}

// ListenAddr returns host:port for the HTTP server.
func (e *Env) ListenAddr() string {
	return fmt.Sprintf("%s:%d", e.Config.Server.Host, e.Config.Server.Port)
}

// InitialConfigYAML generates the initial .sandbox/config.yml content.
func InitialConfigYAML() ([]byte, error) {
	cfg := Default()

	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&cfg); err != nil {
		return nil, fmt.Errorf("encoding default config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("closing yaml encoder: %w", err)
	}
	return []byte(buf.String()), nil
}
