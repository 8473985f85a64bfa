package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	provisionerdrv "github.com/kompox/sandboxops/adapters/drivers/provisioner"
	"github.com/kompox/sandboxops/adapters/inference/ollama"
	"github.com/kompox/sandboxops/adapters/store/fsdir"
	"github.com/kompox/sandboxops/adapters/store/inmem"
	"github.com/kompox/sandboxops/adapters/store/rdb"
	"github.com/kompox/sandboxops/config/sandboxenv"
	"github.com/kompox/sandboxops/domain"
	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/usecase/catalog"
	"github.com/kompox/sandboxops/usecase/chat"
	"github.com/kompox/sandboxops/usecase/inference"
	"github.com/kompox/sandboxops/usecase/project"
	"github.com/kompox/sandboxops/usecase/workspace"
)

// findFlag recursively searches parents for a flag.
func findFlag(cmd *cobra.Command, name string) *pflag.Flag {
	for c := cmd; c != nil; c = c.Parent() {
		if f := c.Flags().Lookup(name); f != nil {
			return f
		}
		if f := c.PersistentFlags().Lookup(name); f != nil {
			return f
		}
	}
	return nil
}

// stores holds the history repositories backed by the configured db-url.
type stores struct {
	Run    domain.RunRepository
	Change domain.ChangeRepository
}

// buildStores opens the run and change history stores from the configured db-url.
func buildStores(dbURL string) (*stores, error) {
	switch {
	case dbURL == "" || strings.HasPrefix(dbURL, "memory:"):
		return &stores{Run: inmem.NewRunRepository(), Change: inmem.NewChangeRepository()}, nil
	case strings.HasPrefix(dbURL, "sqlite:") || strings.HasPrefix(dbURL, "sqlite3:"):
		db, err := rdb.OpenFromURL(dbURL)
		if err != nil {
			return nil, err
		}
		if err := rdb.AutoMigrate(db); err != nil {
			return nil, err
		}
		return &stores{Run: rdb.NewRunRepository(db), Change: rdb.NewChangeRepository(db)}, nil
	default:
		return nil, fmt.Errorf("unsupported db scheme: %s", dbURL)
	}
}

func buildProvisioner(e *sandboxenv.Env) (model.ProvisionerPort, error) {
	p := e.Config.Provisioner
	return provisionerdrv.New(p.Driver, map[string]string{
		provisionerdrv.SettingBinary: e.ExpandVars(p.Binary),
	})
}

func buildInferencePort(e *sandboxenv.Env) model.InferencePort {
	return ollama.New(e.InferenceURL(), nil)
}

// buildWorkspaceUseCase creates the workspace use case with required repositories and ports.
func buildWorkspaceUseCase(cmd *cobra.Command) (*workspace.UseCase, error) {
	e, err := envFromContext(cmd.Context())
	if err != nil {
		return nil, err
	}
	st, err := buildStores(e.DBURL())
	if err != nil {
		return nil, err
	}
	return newWorkspaceUseCase(e, st)
}

func newWorkspaceUseCase(e *sandboxenv.Env, st *stores) (*workspace.UseCase, error) {
	prov, err := buildProvisioner(e)
	if err != nil {
		return nil, err
	}
	return &workspace.UseCase{
		Repos: &workspace.Repos{
			Workspace: fsdir.NewWorkspaceRepository(e.WorkspaceDir()),
			Run:       st.Run,
		},
		Provisioner:      prov,
		ModuleSource:     e.ExpandVars(e.Config.Provisioner.ModuleSource),
		OperationTimeout: e.Config.Provisioner.OperationTimeout,
	}, nil
}

func newProjectUseCase(e *sandboxenv.Env, port model.InferencePort, st *stores) *project.UseCase {
	c := e.Config
	return &project.UseCase{
		Repos: &project.Repos{
			Project: fsdir.NewProjectRepository(e.ProjectDir()),
			Change:  st.Change,
		},
		Inference:      port,
		Model:          c.Inference.Model,
		Timeout:        c.Inference.ChatTimeout,
		MaxUploadBytes: int64(c.Projects.MaxUploadMB) << 20,
		Retention:      c.Projects.Retention,
	}
}

// buildProjectUseCase creates the project use case with its stores and the inference port.
func buildProjectUseCase(cmd *cobra.Command) (*project.UseCase, error) {
	e, err := envFromContext(cmd.Context())
	if err != nil {
		return nil, err
	}
	st, err := buildStores(e.DBURL())
	if err != nil {
		return nil, err
	}
	return newProjectUseCase(e, buildInferencePort(e), st), nil
}

func newInferenceUseCase(e *sandboxenv.Env, port model.InferencePort) *inference.UseCase {
	c := e.Config.Inference
	return inference.New(port, inference.Options{
		Model:         c.Model,
		AllowDownload: c.AllowDownload,
		CacheTTL:      c.StatusCacheTTL,
	})
}

func newChatUseCase(e *sandboxenv.Env, port model.InferencePort, projects *project.UseCase) *chat.UseCase {
	c := e.Config.Inference
	return &chat.UseCase{Inference: port, Model: c.Model, Timeout: c.ChatTimeout, Projects: projects}
}

func buildInferenceUseCase(cmd *cobra.Command) (*inference.UseCase, error) {
	e, err := envFromContext(cmd.Context())
	if err != nil {
		return nil, err
	}
	return newInferenceUseCase(e, buildInferencePort(e)), nil
}

func buildChatUseCase(cmd *cobra.Command) (*chat.UseCase, error) {
	e, err := envFromContext(cmd.Context())
	if err != nil {
		return nil, err
	}
	st, err := buildStores(e.DBURL())
	if err != nil {
		return nil, err
	}
	port := buildInferencePort(e)
	return newChatUseCase(e, port, newProjectUseCase(e, port, st)), nil
}

func buildCatalogUseCase(_ *cobra.Command) (*catalog.UseCase, error) {
	return catalog.New()
}
