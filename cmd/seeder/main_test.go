package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/weibo-seed/internal/graph"
	"github.com/zhouzirui/weibo-seed/internal/store"
)

const testDataset = `[
  {"用户ID": "1001", "个人基本信息": {"用户名": "alice", "用户昵称": "爱丽丝", "微博等级": 5},
   "关注博主信息": {"follows": {"1002": {}}},
   "近期发帖内容分析": {"全部帖子合集": ["<p>你好</p>", ""]}},
  {"用户ID": "1002", "个人基本信息": {"用户名": "bob"}},
  42
]`

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weibo.json")
	if err := os.WriteFile(path, []byte(testDataset), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProfilesJSON(t *testing.T) {
	out, err := execute(t, "profiles", "--dataset", writeDataset(t), "--format", "json")
	if err != nil {
		t.Fatalf("profiles error = %v\n%s", err, out)
	}

	var agents []graph.Agent
	if err := json.Unmarshal([]byte(out), &agents); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}
	if agents[0].Profile.DisplayName != "爱丽丝" || agents[0].Profile.Summary != "level: 5" {
		t.Fatalf("unexpected profile %+v", agents[0].Profile)
	}
	if agents[1].UserID != nil {
		t.Fatal("offline agents must not carry a user id")
	}
}

func TestProfilesYAML(t *testing.T) {
	out, err := execute(t, "profiles", "--dataset", writeDataset(t))
	if err != nil {
		t.Fatalf("profiles error = %v\n%s", err, out)
	}
	var agents []map[string]any
	if err := yaml.Unmarshal([]byte(out), &agents); err != nil {
		t.Fatalf("decode yaml: %v\n%s", err, out)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}
	if !strings.Contains(out, "username: alice") {
		t.Fatalf("expected alice in output:\n%s", out)
	}
}

func TestBootstrapDryRunSavesRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	out, err := execute(t, "bootstrap", "--dry-run", "--dataset", writeDataset(t), "--db", db, "--json")
	if err != nil {
		t.Fatalf("bootstrap error = %v\n%s", err, out)
	}

	var info store.RunInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	s := info.Summary
	if s.Registered != 2 || s.Follows != 1 || s.Posts != 1 || s.SkippedPosts != 1 || s.DiscardedRecords != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}

	runs, err := store.NewSQLiteStore(context.Background(), db)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer runs.Close()
	run, err := runs.GetRun(context.Background(), info.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if len(run.Personas) != 2 || len(run.Edges) != 1 {
		t.Fatalf("unexpected stored run %+v", run)
	}
}

func TestBootstrapRequiresEngineURL(t *testing.T) {
	t.Setenv("SEED_ENGINE_URL", "")
	if _, err := execute(t, "bootstrap", "--dataset", writeDataset(t)); err == nil {
		t.Fatal("expected error without engine url")
	}
}

func TestBootstrapRejectsBadPolicyFlag(t *testing.T) {
	_, err := execute(t, "bootstrap", "--dry-run", "--dataset", writeDataset(t), "--failure-policy", "retry")
	if err == nil {
		t.Fatal("expected error for unknown failure policy")
	}
}

func TestBootstrapRejectsZeroMaxPosts(t *testing.T) {
	_, err := execute(t, "bootstrap", "--dry-run", "--dataset", writeDataset(t), "--max-posts", "0")
	if err == nil || !strings.Contains(err.Error(), "invalid --max-posts value: 0") {
		t.Fatalf("expected max-posts error, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, version) {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestRunServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServer() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServer did not return after cancel")
	}
}
