package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fieldsnap/internal/api"
	"fieldsnap/internal/config"
	"fieldsnap/internal/progress"
	"fieldsnap/internal/queue"
	"fieldsnap/internal/testsupport"
	"fieldsnap/internal/uploader"
)

type stubDrainer struct {
	triggers atomic.Int32
	drains   atomic.Int32
}

func (d *stubDrainer) Trigger() { d.triggers.Add(1) }

func (d *stubDrainer) Drain(context.Context) uploader.DrainResult {
	d.drains.Add(1)
	return uploader.DrainResult{Attempts: 2, Uploaded: 1, Failed: 1, Duration: 1500 * time.Millisecond}
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	drainer    *stubDrainer
	server     *httptest.Server
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, token string) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithMemoryStore(), testsupport.WithAPIToken(token))
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("FIELDSNAP_API_TOKEN", "")

	store := testsupport.MustOpenStore(t, cfg)
	drainer := &stubDrainer{}
	handler := api.NewHandler(api.Options{
		Store:    store,
		Drainer:  drainer,
		Progress: progress.New(store, drainer, progress.WithPollInterval(10*time.Millisecond)),
		Status: func(context.Context) api.StatusResponse {
			return api.StatusResponse{
				Running:        true,
				PID:            4242,
				Online:         true,
				StoreBackend:   cfg.Store.Backend,
				StorageBackend: cfg.Storage.Backend,
				RetryLimit:     store.RetryLimit(),
				Queue:          store.Counts(""),
			}
		},
		Token: token,
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg.API.Bind = strings.TrimPrefix(server.URL, "http://")
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		drainer:    drainer,
		server:     server,
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\n\n[api]\nbind = %q\ntoken = %q\n\n[store]\nbackend = %q\n\n[storage]\nbackend = \"localfs\"\nlocal_dir = %q\n\n[connectivity]\nnetlink = false\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.API.Bind,
		cfg.API.Token,
		cfg.Store.Backend,
		cfg.Storage.LocalDir,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
