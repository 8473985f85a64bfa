package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/kompox/sandboxops/adapters/store/fsdir"
	"github.com/kompox/sandboxops/adapters/store/inmem"
	"github.com/kompox/sandboxops/domain/model"
	"github.com/kompox/sandboxops/internal/tfconfig"
)

// fakeProvisioner records invocations and answers with runFunc.
type fakeProvisioner struct {
	mu      sync.Mutex
	calls   [][]string
	runFunc func(ctx context.Context, dir string, args ...string) (*model.CommandResult, error)
}

func (f *fakeProvisioner) ID() string { return "fake" }

func (f *fakeProvisioner) Version(context.Context) (string, error) { return "Fake v0.0.0", nil }

func (f *fakeProvisioner) Run(ctx context.Context, dir string, args ...string) (*model.CommandResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	run := f.runFunc
	f.mu.Unlock()
	if run != nil {
		return run(ctx, dir, args...)
	}
	return &model.CommandResult{Command: "fake", Args: args, Dir: dir, Stdout: args[0] + " ok"}, nil
}

func (f *fakeProvisioner) subcommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c[0])
	}
	return out
}

func newTestUseCase(t *testing.T, prov *fakeProvisioner) (*UseCase, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "workspaces")
	return &UseCase{
		Repos: &Repos{
			Workspace: fsdir.NewWorkspaceRepository(root),
			Run:       inmem.NewRunRepository(),
		},
		Provisioner:  prov,
		ModuleSource: "../../modules/aws-sandbox",
	}, root
}

func exitWith(sub string, code int, stderr string) func(context.Context, string, ...string) (*model.CommandResult, error) {
	return func(_ context.Context, dir string, args ...string) (*model.CommandResult, error) {
		if args[0] == sub {
			return &model.CommandResult{Args: args, Dir: dir, ExitCode: code, Stderr: stderr}, nil
		}
		return &model.CommandResult{Args: args, Dir: dir, Stdout: args[0] + " ok"}, nil
	}
}

func TestCreateWritesConfigAndInitializes(t *testing.T) {
	ctx := context.Background()
	prov := &fakeProvisioner{}
	uc, root := newTestUseCase(t, prov)

	out, err := uc.Create(ctx, &CreateInput{ID: "ws1", Variables: model.Variables{"project_name": "demo", "create_bastion": false}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w := out.Workspace
	if w.Status != model.WorkspaceStatusInitialized {
		t.Errorf("status = %s, want initialized", w.Status)
	}
	if w.Dir != filepath.Join(root, "ws1") {
		t.Errorf("dir = %s", w.Dir)
	}
	for _, f := range []string{tfconfig.MainFile, tfconfig.VariablesFile, tfconfig.TFVarsFile} {
		if _, err := os.Stat(filepath.Join(w.Dir, f)); err != nil {
			t.Errorf("missing %s: %v", f, err)
		}
	}
	if w.Variables["project_name"] != "demo" || w.Variables["create_bastion"] != false {
		t.Errorf("variables not merged: %v", w.Variables)
	}
	if _, ok := w.Variables["region"]; !ok {
		t.Errorf("defaults not applied: %v", w.Variables)
	}
	if diff := cmp.Diff([]string{"init"}, prov.subcommands()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if w.LastOperation != model.OperationInit || w.LastOutput != "init ok" {
		t.Errorf("last run not recorded: %+v", w)
	}
}

func TestCreateGeneratesID(t *testing.T) {
	uc, _ := newTestUseCase(t, &fakeProvisioner{})
	out, err := uc.Create(context.Background(), &CreateInput{SkipInit: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(out.Workspace.ID, "workspace-") {
		t.Errorf("id = %s", out.Workspace.ID)
	}
	if out.Workspace.Status != model.WorkspaceStatusUninitialized {
		t.Errorf("status = %s", out.Workspace.Status)
	}
}

func TestCreateRejects(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(t, &fakeProvisioner{})

	if _, err := uc.Create(ctx, &CreateInput{ID: "ws1", SkipInit: true}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := uc.Create(ctx, &CreateInput{ID: "ws1", SkipInit: true}); !errors.Is(err, model.ErrWorkspaceExists) {
		t.Errorf("duplicate create: got %v, want ErrWorkspaceExists", err)
	}
	if _, err := uc.Create(ctx, &CreateInput{ID: "../escape"}); !errors.Is(err, model.ErrWorkspaceInvalid) {
		t.Errorf("bad id: got %v", err)
	}
	if _, err := uc.Create(ctx, &CreateInput{ID: "ws2", Variables: model.Variables{"create_bastion": "yes"}}); !errors.Is(err, model.ErrWorkspaceInvalid) {
		t.Errorf("bad variable type: got %v", err)
	}
}

func TestCreateKeepsWorkspaceWhenInitFails(t *testing.T) {
	ctx := context.Background()
	prov := &fakeProvisioner{runFunc: exitWith("init", 1, "Error: Failed to query available provider packages")}
	uc, _ := newTestUseCase(t, prov)

	out, err := uc.Create(ctx, &CreateInput{ID: "ws1"})
	var cmdErr *model.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("want CommandError, got %v", err)
	}
	if cmdErr.ExitCode() != 1 || out == nil || out.Workspace.ID != "ws1" {
		t.Fatalf("unexpected result: %v %+v", cmdErr, out)
	}
	w, err := uc.Repos.Workspace.Get(ctx, "ws1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w.Status != model.WorkspaceStatusUninitialized || w.LastExitCode != 1 {
		t.Errorf("workspace = %+v", w)
	}
	if !strings.Contains(w.LastOutput, "provider packages") {
		t.Errorf("last output = %q", w.LastOutput)
	}
}

func TestCreateThenDeleteLeavesNoDirectory(t *testing.T) {
	ctx := context.Background()
	uc, root := newTestUseCase(t, &fakeProvisioner{})

	out, err := uc.Create(ctx, &CreateInput{ID: "ws1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := uc.Plan(ctx, &PlanInput{ID: "ws1"}); err != nil {
		t.Fatalf("plan: %v", err)
	}
	if _, err := uc.Delete(ctx, &DeleteInput{ID: "ws1"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(out.Workspace.Dir); !os.IsNotExist(err) {
		t.Errorf("directory still present: %v", err)
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("root not empty: %v", entries)
	}
	runs, _ := uc.Repos.Run.ListByWorkspace(ctx, "ws1")
	if len(runs) != 0 {
		t.Errorf("run history kept: %d", len(runs))
	}
}

func TestDeleteWithDestroy(t *testing.T) {
	ctx := context.Background()
	prov := &fakeProvisioner{}
	uc, _ := newTestUseCase(t, prov)
	if _, err := uc.Create(ctx, &CreateInput{ID: "ws1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	prov.runFunc = exitWith("destroy", 1, "Error: destroy failed")
	if _, err := uc.Delete(ctx, &DeleteInput{ID: "ws1", Destroy: true}); !errors.Is(err, model.ErrCommandFailed) {
		t.Fatalf("want command failure, got %v", err)
	}
	if _, err := uc.Repos.Workspace.Get(ctx, "ws1"); err != nil {
		t.Fatalf("workspace removed after failed destroy: %v", err)
	}

	prov.runFunc = nil
	out, err := uc.Delete(ctx, &DeleteInput{ID: "ws1", Destroy: true})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !out.Destroyed {
		t.Errorf("destroyed = false")
	}
	if _, err := uc.Repos.Workspace.Get(ctx, "ws1"); !errors.Is(err, model.ErrWorkspaceNotFound) {
		t.Errorf("get after delete: %v", err)
	}
}

func TestPlanMissingWorkspace(t *testing.T) {
	prov := &fakeProvisioner{}
	uc, _ := newTestUseCase(t, prov)
	if _, err := uc.Plan(context.Background(), &PlanInput{ID: "nope"}); !errors.Is(err, model.ErrWorkspaceNotFound) {
		t.Fatalf("got %v, want ErrWorkspaceNotFound", err)
	}
	if len(prov.subcommands()) != 0 {
		t.Errorf("provisioner called: %v", prov.subcommands())
	}
}

func TestPlanExitCodes(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		wantErr    bool
		wantChange bool
		wantStatus model.WorkspaceStatus
	}{
		{"no changes", 0, false, false, model.WorkspaceStatusPlanned},
		{"changes", 2, false, true, model.WorkspaceStatusPlanned},
		{"error", 1, true, false, model.WorkspaceStatusInitialized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			prov := &fakeProvisioner{}
			uc, _ := newTestUseCase(t, prov)
			if _, err := uc.Create(ctx, &CreateInput{ID: "ws1"}); err != nil {
				t.Fatalf("create: %v", err)
			}
			stderr := ""
			if tt.wantErr {
				stderr = "Error: invalid"
			}
			prov.runFunc = func(_ context.Context, dir string, args ...string) (*model.CommandResult, error) {
				return &model.CommandResult{Args: args, Dir: dir, ExitCode: tt.code, Stdout: "Plan: 3 to add", Stderr: stderr}, nil
			}

			out, err := uc.Plan(ctx, &PlanInput{ID: "ws1"})
			if tt.wantErr {
				var cmdErr *model.CommandError
				if !errors.As(err, &cmdErr) {
					t.Fatalf("want CommandError, got %v", err)
				}
				if cmdErr.Result.Stdout != "Plan: 3 to add" || !strings.Contains(err.Error(), "Error: invalid") {
					t.Errorf("output not propagated: %v", err)
				}
			} else {
				if err != nil {
					t.Fatalf("plan: %v", err)
				}
				if out.Changes != tt.wantChange {
					t.Errorf("changes = %v", out.Changes)
				}
			}

			w, _ := uc.Repos.Workspace.Get(ctx, "ws1")
			if w.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", w.Status, tt.wantStatus)
			}
			if w.LastOperation != model.OperationPlan || w.LastExitCode != tt.code {
				t.Errorf("last run = %s/%d", w.LastOperation, w.LastExitCode)
			}
			runs, _ := uc.Repos.Run.ListByWorkspace(ctx, "ws1")
			if len(runs) != 2 || runs[0].Operation != model.OperationPlan || runs[0].Success == tt.wantErr || runs[0].Changes != tt.wantChange {
				t.Errorf("runs = %+v", runs)
			}
		})
	}
}

func TestApplyUsesSavedPlan(t *testing.T) {
	ctx := context.Background()
	prov := &fakeProvisioner{}
	uc, _ := newTestUseCase(t, prov)
	out, err := uc.Create(ctx, &CreateInput{ID: "ws1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	dir := out.Workspace.Dir
	prov.runFunc = func(_ context.Context, dir string, args ...string) (*model.CommandResult, error) {
		switch args[0] {
		case "plan":
			_ = os.WriteFile(filepath.Join(dir, tfconfig.PlanFile), []byte("plan"), 0644)
			return &model.CommandResult{Args: args, ExitCode: 2}, nil
		case "output":
			return &model.CommandResult{Args: args, Stdout: `{"vpc_id":{"value":"vpc-123","type":"string","sensitive":false}}`}, nil
		}
		return &model.CommandResult{Args: args}, nil
	}
	if _, err := uc.Plan(ctx, &PlanInput{ID: "ws1"}); err != nil {
		t.Fatalf("plan: %v", err)
	}

	aout, err := uc.Apply(ctx, &ApplyInput{ID: "ws1"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !aout.UsedPlan || aout.Workspace.Status != model.WorkspaceStatusApplied {
		t.Errorf("apply out = %+v", aout)
	}
	if aout.Outputs["vpc_id"].Value != "vpc-123" {
		t.Errorf("outputs = %v", aout.Outputs)
	}
	if _, err := os.Stat(filepath.Join(dir, tfconfig.PlanFile)); !os.IsNotExist(err) {
		t.Errorf("plan file not removed: %v", err)
	}
	prov.mu.Lock()
	applyCall := prov.calls[2]
	prov.mu.Unlock()
	if diff := cmp.Diff(applyPlanArgs, applyCall); diff != "" {
		t.Errorf("apply args (-want +got):\n%s", diff)
	}

	// Without a saved plan apply auto-approves.
	if _, err := uc.Apply(ctx, &ApplyInput{ID: "ws1"}); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	prov.mu.Lock()
	applyCall = prov.calls[4]
	prov.mu.Unlock()
	if diff := cmp.Diff(applyAutoArgs, applyCall); diff != "" {
		t.Errorf("apply args (-want +got):\n%s", diff)
	}
}

func TestDestroy(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(t, &fakeProvisioner{})
	if _, err := uc.Create(ctx, &CreateInput{ID: "ws1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	out, err := uc.Destroy(ctx, &DestroyInput{ID: "ws1"})
	if err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if out.Workspace.Status != model.WorkspaceStatusDestroyed {
		t.Errorf("status = %s", out.Workspace.Status)
	}
}

func TestUpdateVariablesDropsPlan(t *testing.T) {
	ctx := context.Background()
	prov := &fakeProvisioner{}
	uc, _ := newTestUseCase(t, prov)
	out, err := uc.Create(ctx, &CreateInput{ID: "ws1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	plan := filepath.Join(out.Workspace.Dir, tfconfig.PlanFile)
	prov.runFunc = func(_ context.Context, dir string, args ...string) (*model.CommandResult, error) {
		_ = os.WriteFile(plan, []byte("plan"), 0644)
		return &model.CommandResult{Args: args}, nil
	}
	if _, err := uc.Plan(ctx, &PlanInput{ID: "ws1"}); err != nil {
		t.Fatalf("plan: %v", err)
	}

	uout, err := uc.UpdateVariables(ctx, &UpdateVariablesInput{ID: "ws1", Variables: model.Variables{"environment": "prod", "vpc_cidr": "10.1.0.0/16"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !uout.PlanDiscarded || uout.Workspace.Status != model.WorkspaceStatusInitialized {
		t.Errorf("update out = %+v", uout)
	}
	if _, err := os.Stat(plan); !os.IsNotExist(err) {
		t.Errorf("plan file kept: %v", err)
	}
	got, err := uc.Get(ctx, &GetInput{ID: "ws1"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Workspace.Variables["environment"] != "prod" || got.Workspace.Variables["project_name"] == nil {
		t.Errorf("variables = %v", got.Workspace.Variables)
	}

	if _, err := uc.UpdateVariables(ctx, &UpdateVariablesInput{ID: "ws1", Variables: model.Variables{"bad name": 1}}); !errors.Is(err, model.ErrWorkspaceInvalid) {
		t.Errorf("invalid variable: %v", err)
	}
}

func TestGetReadsState(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(t, &fakeProvisioner{})
	out, err := uc.Create(ctx, &CreateInput{ID: "ws1", SkipInit: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	state := `{"terraform_version":"1.6.0","serial":3,"outputs":{"bucket":{"value":"b-1","type":"string"}},"resources":[{"mode":"managed","type":"aws_s3_bucket","name":"b","provider":"provider[\"registry.terraform.io/hashicorp/aws\"]"}]}`
	if err := os.WriteFile(filepath.Join(out.Workspace.Dir, tfconfig.StateFile), []byte(state), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := uc.Get(ctx, &GetInput{ID: "ws1"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Outputs["bucket"].Value != "b-1" {
		t.Errorf("outputs = %v", got.Outputs)
	}
	if len(got.Resources) != 1 || got.Resources[0].Type != "aws_s3_bucket" || got.Resources[0].Module != "root" {
		t.Errorf("resources = %+v", got.Resources)
	}
	want := []string{tfconfig.MainFile, tfconfig.StateFile, tfconfig.TFVarsFile, tfconfig.VariablesFile}
	if diff := cmp.Diff(want, got.Files); diff != "" {
		t.Errorf("files (-want +got):\n%s", diff)
	}
}

func TestListAndRuns(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(t, &fakeProvisioner{})
	for _, id := range []string{"ws-a", "ws-b"} {
		if _, err := uc.Create(ctx, &CreateInput{ID: id}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if _, err := uc.Plan(ctx, &PlanInput{ID: "ws-a"}); err != nil {
		t.Fatalf("plan: %v", err)
	}

	list, err := uc.List(ctx, &ListInput{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Workspaces) != 2 {
		t.Errorf("list = %d workspaces", len(list.Workspaces))
	}

	runs, err := uc.Runs(ctx, &RunsInput{ID: "ws-a"})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	var ops []string
	for _, r := range runs.Runs {
		ops = append(ops, r.Operation)
	}
	if diff := cmp.Diff([]string{"plan", "init"}, ops); diff != "" {
		t.Errorf("runs (-want +got):\n%s", diff)
	}
	if _, err := uc.Runs(ctx, &RunsInput{ID: "missing"}); !errors.Is(err, model.ErrWorkspaceNotFound) {
		t.Errorf("runs of missing workspace: %v", err)
	}
}

func TestBusyWorkspace(t *testing.T) {
	ctx := context.Background()
	prov := &fakeProvisioner{}
	uc, _ := newTestUseCase(t, prov)
	if _, err := uc.Create(ctx, &CreateInput{ID: "ws1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	prov.runFunc = func(_ context.Context, dir string, args ...string) (*model.CommandResult, error) {
		close(started)
		<-release
		return &model.CommandResult{Args: args}, nil
	}
	done := make(chan error, 1)
	go func() {
		_, err := uc.Apply(ctx, &ApplyInput{ID: "ws1"})
		done <- err
	}()
	<-started

	if _, err := uc.Plan(ctx, &PlanInput{ID: "ws1"}); !errors.Is(err, model.ErrWorkspaceBusy) {
		t.Errorf("concurrent plan: got %v, want ErrWorkspaceBusy", err)
	}
	prov.mu.Lock()
	prov.runFunc = nil
	prov.mu.Unlock()
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func TestMissingBinary(t *testing.T) {
	ctx := context.Background()
	prov := &fakeProvisioner{runFunc: func(_ context.Context, dir string, args ...string) (*model.CommandResult, error) {
		return &model.CommandResult{Command: "terraform", Args: args, ExitCode: model.ExitCodeNotFound, Stderr: "command not found: terraform"}, nil
	}}
	uc, _ := newTestUseCase(t, prov)
	_, err := uc.Create(ctx, &CreateInput{ID: "ws1"})
	if !errors.Is(err, model.ErrProvisionerNotInstalled) {
		t.Fatalf("got %v, want ErrProvisionerNotInstalled", err)
	}
}

func TestApplyOutlivesCaller(t *testing.T) {
	prov := &fakeProvisioner{}
	uc, _ := newTestUseCase(t, prov)
	if _, err := uc.Create(context.Background(), &CreateInput{ID: "ws1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	var runCtxErr error
	prov.mu.Lock()
	prov.runFunc = func(ctx context.Context, dir string, args ...string) (*model.CommandResult, error) {
		if args[0] == "apply" {
			close(started)
			<-release
			runCtxErr = ctx.Err()
		}
		return &model.CommandResult{Args: args, Dir: dir, Stdout: args[0] + " ok"}, nil
	}
	prov.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := uc.Apply(ctx, &ApplyInput{ID: "ws1"})
		errc <- err
	}()
	<-started
	cancel()
	close(release)

	if err := <-errc; err != nil {
		t.Fatalf("apply: %v", err)
	}
	if runCtxErr != nil {
		t.Errorf("provisioner context cancelled with the caller: %v", runCtxErr)
	}
	runs, err := uc.Runs(context.Background(), &RunsInput{ID: "ws1"})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	var ops []string
	for _, r := range runs.Runs {
		ops = append(ops, r.Operation)
	}
	if diff := cmp.Diff([]string{"output", "apply", "init"}, ops); diff != "" {
		t.Errorf("runs (-want +got):\n%s", diff)
	}
	got, err := uc.Get(context.Background(), &GetInput{ID: "ws1"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Workspace.Status != model.WorkspaceStatusApplied {
		t.Errorf("status = %s, want applied", got.Workspace.Status)
	}
}

func TestOperationTimeout(t *testing.T) {
	prov := &fakeProvisioner{}
	uc, _ := newTestUseCase(t, prov)
	uc.OperationTimeout = 50 * time.Millisecond
	if _, err := uc.Create(context.Background(), &CreateInput{ID: "ws1", SkipInit: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	prov.mu.Lock()
	prov.runFunc = func(ctx context.Context, dir string, args ...string) (*model.CommandResult, error) {
		<-ctx.Done()
		return &model.CommandResult{Args: args, Dir: dir, ExitCode: 130}, ctx.Err()
	}
	prov.mu.Unlock()

	_, err := uc.Init(context.Background(), &InitInput{ID: "ws1"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("init err = %v, want deadline exceeded", err)
	}
	runs, _ := uc.Runs(context.Background(), &RunsInput{ID: "ws1"})
	if len(runs.Runs) != 1 || runs.Runs[0].Success {
		t.Errorf("interrupted run not recorded as failed: %+v", runs.Runs)
	}
}
