package main

import (
	"os"
	"strings"
	"testing"
)

func TestLogsCommandFiltersAndFormats(t *testing.T) {
	env := setupCLITestEnv(t, "")
	content := strings.Join([]string{
		`{"ts":"2026-03-01T10:00:00Z","level":"info","msg":"upload complete","component":"uploader","item_id":"a1","group_id":"job-1"}`,
		`{"ts":"2026-03-01T10:00:01Z","level":"warn","msg":"upload failed; will retry","component":"uploader","item_id":"b2","group_id":"job-2"}`,
		`not json`,
	}, "\n") + "\n"
	if err := os.WriteFile(env.cfg.DaemonLogPath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "upload complete")
	requireContains(t, out, "upload failed; will retry")
	if strings.Contains(out, "not json") {
		t.Fatalf("non-JSON line should be skipped in formatted mode:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"logs", "--group", "job-2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs --group: %v", err)
	}
	if strings.Contains(out, "upload complete") {
		t.Fatalf("group filter leaked other group:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"logs", "--level", "warn", "--raw"}, env.configPath)
	if err != nil {
		t.Fatalf("logs --level warn --raw: %v", err)
	}
	requireContains(t, out, `"item_id":"b2"`)
	if strings.Contains(out, `"item_id":"a1"`) {
		t.Fatalf("level filter leaked info record:\n%s", out)
	}

	if _, _, err := runCLI(t, []string{"logs", "--level", "loud"}, env.configPath); err == nil {
		t.Fatal("expected error for bad level")
	}
}
