package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/redfishscan/internal/config"
	"github.com/nao1215/redfishscan/internal/database"
	"github.com/nao1215/redfishscan/internal/model"
	"github.com/nao1215/redfishscan/internal/pipeline"
)

const noAuthConfig = "defaults:\n  auth: none\n"

func TestInventoryCmd(t *testing.T) {
	t.Parallel()

	t.Run("crawls and records a run", func(t *testing.T) {
		t.Parallel()

		bmc := newFakeBMC(t)
		env := newTestEnv(t, noAuthConfig)

		out, err := env.run(t, "inventory", bmc.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"REDFISH SCAN REPORT", "CRAWL SUMMARY", "#ComputerSystem.v1_13_0.ComputerSystem", "/redfish/v1/Managers/missing"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}

		db, err := database.Open(env.dbDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), bmc.URL, 0)
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("expected 1 run, got %d", len(runs))
		}
		if runs[0].Command != model.ScanInventory {
			t.Errorf("expected command %q, got %q", model.ScanInventory, runs[0].Command)
		}
		if runs[0].Failures != 1 {
			t.Errorf("expected 1 failure, got %d", runs[0].Failures)
		}

		snaps, err := db.ListSnapshots(context.Background(), runs[0].ID)
		if err != nil {
			t.Fatalf("ListSnapshots: %v", err)
		}
		// 9 fetched resources plus the failed manager.
		if len(snaps) != 10 {
			t.Errorf("expected 10 snapshots, got %d", len(snaps))
		}
	})

	t.Run("fail-on-error reports resource failures", func(t *testing.T) {
		t.Parallel()

		bmc := newFakeBMC(t)
		env := newTestEnv(t, noAuthConfig)

		_, err := env.run(t, "inventory", "--no-db", "--fail-on-error", bmc.URL)
		if !errors.Is(err, ErrResourceFailures) {
			t.Fatalf("expected ErrResourceFailures, got %v", err)
		}
		if exitCode(err) != 2 {
			t.Errorf("expected exit code 2, got %d", exitCode(err))
		}
	})

	t.Run("session login and logout", func(t *testing.T) {
		t.Parallel()

		bmc := newFakeBMC(t)
		env := newTestEnv(t, "defaults:\n  username: admin\n  password: secret\n")

		if _, err := env.run(t, "inventory", "--no-db", bmc.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, _, logins, logouts, tokenSeen := bmc.state()
		if logins != 1 || logouts != 1 {
			t.Errorf("expected 1 login and 1 logout, got %d and %d", logins, logouts)
		}
		if !tokenSeen {
			t.Error("expected requests to carry the session token")
		}
	})

	t.Run("named target from config file", func(t *testing.T) {
		t.Parallel()

		bmc := newFakeBMC(t)
		env := newTestEnv(t, "defaults:\n  auth: none\ntargets:\n  rack1:\n    base_uri: "+bmc.URL+"\n    filter: /redfish/v1/Systems\n")

		out, err := env.run(t, "inventory", "--all", "--no-db", "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var doc struct {
			Report struct {
				Target string `json:"target"`
				Crawl  struct {
					Visited []string `json:"visited"`
				} `json:"crawl"`
			} `json:"report"`
		}
		if err := json.Unmarshal([]byte(out), &doc); err != nil {
			t.Fatalf("invalid JSON output: %v\n%s", err, out)
		}
		if doc.Report.Target != "rack1" {
			t.Errorf("expected target rack1, got %q", doc.Report.Target)
		}
		for _, v := range doc.Report.Crawl.Visited {
			if strings.Contains(v, "Managers") {
				t.Errorf("filter should keep Managers out of scope, visited %q", v)
			}
		}
	})

	t.Run("writes resource tree and parquet", func(t *testing.T) {
		t.Parallel()

		bmc := newFakeBMC(t)
		env := newTestEnv(t, noAuthConfig)
		dir := t.TempDir()
		treeDir := filepath.Join(dir, "tree")
		parquetPath := filepath.Join(dir, "out", "inventory.parquet")
		reportPath := filepath.Join(dir, "out", "report.md")

		_, err := env.run(t, "inventory", "--no-db", "-d", treeDir,
			"--parquet", parquetPath, "--markdown", "-o", reportPath, bmc.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		entries, err := os.ReadDir(treeDir)
		if err != nil || len(entries) != 1 {
			t.Fatalf("expected one target directory, got %v (%v)", entries, err)
		}
		if entries[0].Name() != dirName(bmc.URL) {
			t.Errorf("expected directory %q, got %q", dirName(bmc.URL), entries[0].Name())
		}

		info, err := os.Stat(parquetPath)
		if err != nil {
			t.Fatalf("expected parquet file: %v", err)
		}
		if info.Size() == 0 {
			t.Error("expected non-empty parquet file")
		}

		md, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("expected report file: %v", err)
		}
		if !strings.Contains(string(md), "# Redfish Scan Report") {
			t.Errorf("expected markdown report, got:\n%s", md)
		}
	})

	t.Run("unreachable root is a resource failure", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, noAuthConfig)
		out, err := env.run(t, "inventory", "--no-db", "-t", "2s", "http://127.0.0.1:1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "FAILED:    1") {
			t.Errorf("expected one failure, got:\n%s", out)
		}

		_, err = env.run(t, "inventory", "--no-db", "--fail-on-error", "-t", "2s", "http://127.0.0.1:1")
		if !errors.Is(err, ErrResourceFailures) {
			t.Errorf("expected ErrResourceFailures, got %v", err)
		}
	})

	t.Run("bad proxy fails the target", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, noAuthConfig)
		_, err := env.run(t, "inventory", "--no-db", "--proxy", "not a proxy", "http://127.0.0.1:1")
		if !errors.Is(err, ErrTargetsFailed) {
			t.Errorf("expected ErrTargetsFailed, got %v", err)
		}
	})
}

func TestInventoryCmdConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no target", nil, config.ErrNoTarget},
		{"conflicting formats", []string{"--json", "--markdown", "http://bmc"}, config.ErrConflictingReportFormats},
		{"bad auth", []string{"--auth", "kerberos", "http://bmc"}, config.ErrInvalidAuth},
		{"bad concurrency", []string{"-n", "0", "http://bmc"}, config.ErrInvalidConcurrency},
		{"bad root", []string{"--root", "redfish", "http://bmc"}, config.ErrInvalidRoot},
		{"all without targets", []string{"--all"}, config.ErrNoConfiguredTargets},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, noAuthConfig)
			_, err := env.run(t, "inventory", tt.args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("missing explicit config", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		root.SetArgs([]string{"inventory", "-c", filepath.Join(t.TempDir(), "nope.yaml"), "http://bmc"})
		err := root.Execute()
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

func TestLogsCmd(t *testing.T) {
	t.Parallel()

	t.Run("collects every entry", func(t *testing.T) {
		t.Parallel()

		bmc := newFakeBMC(t)
		env := newTestEnv(t, noAuthConfig)

		out, err := env.run(t, "logs", "--no-db", bmc.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"LOG ENTRIES", "[!!!] 2026-01-02T03:04:05Z Fan 3 failed", "System powered on"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("filters by severity and date", func(t *testing.T) {
		t.Parallel()

		bmc := newFakeBMC(t)
		env := newTestEnv(t, noAuthConfig)

		out, err := env.run(t, "logs", "--no-db", "--min-severity", "warning", "--since", "2026-01-01", bmc.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Fan 3 failed") {
			t.Errorf("expected critical entry, got:\n%s", out)
		}
		if strings.Contains(out, "System powered on") {
			t.Errorf("expected OK entry to be filtered, got:\n%s", out)
		}
	})

	t.Run("rejects bad flags before crawling", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, noAuthConfig)
		if _, err := env.run(t, "logs", "--since", "yesterday", "http://bmc"); !errors.Is(err, ErrInvalidSince) {
			t.Errorf("expected ErrInvalidSince, got %v", err)
		}
		if _, err := env.run(t, "logs", "--min-severity", "loud", "http://bmc"); !errors.Is(err, ErrInvalidSeverity) {
			t.Errorf("expected ErrInvalidSeverity, got %v", err)
		}
	})
}

func TestActionCmd(t *testing.T) {
	t.Parallel()

	t.Run("dry run plans without writing", func(t *testing.T) {
		t.Parallel()

		bmc := newFakeBMC(t)
		env := newTestEnv(t, noAuthConfig)

		out, err := env.run(t, "action", "--no-db", "-f", "/redfish/v1/Systems/*",
			"-X", "PATCH", "--body", `{"AssetTag":"rack1"}`, "--dry-run", bmc.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "PLANNED  PATCH /redfish/v1/Systems/1") {
			t.Errorf("expected planned action, got:\n%s", out)
		}
		if tag, patches, _, _, _ := bmc.state(); patches != 0 || tag != "initial" {
			t.Errorf("dry run wrote: patches=%d tag=%q", patches, tag)
		}
	})

	t.Run("applies write", func(t *testing.T) {
		t.Parallel()

		bmc := newFakeBMC(t)
		env := newTestEnv(t, noAuthConfig)
		bodyPath := filepath.Join(t.TempDir(), "body.json")
		if err := os.WriteFile(bodyPath, []byte(`{"AssetTag":"rack1"}`), 0600); err != nil {
			t.Fatal(err)
		}

		out, err := env.run(t, "action", "--no-db", "-f", "/redfish/v1/Systems/*",
			"-X", "patch", "--body", "@"+bodyPath, bmc.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "APPLIED  PATCH /redfish/v1/Systems/1 (204)") {
			t.Errorf("expected applied action, got:\n%s", out)
		}
		if tag, patches, _, _, _ := bmc.state(); patches != 1 || tag != "rack1" {
			t.Errorf("expected one patch to rack1, got patches=%d tag=%q", patches, tag)
		}
	})

	t.Run("skips resources that do not allow the method", func(t *testing.T) {
		t.Parallel()

		bmc := newFakeBMC(t)
		env := newTestEnv(t, noAuthConfig)

		out, err := env.run(t, "action", "--no-db", "-f", "/redfish/v1/Systems",
			"-X", "PATCH", "--body", `{"AssetTag":"x"}`, bmc.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "SKIPPED  PATCH /redfish/v1/Systems") {
			t.Errorf("expected skipped action, got:\n%s", out)
		}
		if _, patches, _, _, _ := bmc.state(); patches != 0 {
			t.Errorf("expected no patches, got %d", patches)
		}
	})

	t.Run("filter matching no crawled resource fails the target", func(t *testing.T) {
		t.Parallel()

		bmc := newFakeBMC(t)
		env := newTestEnv(t, noAuthConfig)

		out, err := env.run(t, "action", "--no-db", "-f", "/redfish/v1/Systems/*/Actions/ComputerSystem.Reset",
			"-X", "POST", "--body", `{"ResetType":"On"}`, bmc.URL)
		if !errors.Is(err, pipeline.ErrNoMatchingResources) || !errors.Is(err, ErrTargetsFailed) {
			t.Fatalf("expected ErrNoMatchingResources from a failed target, got %v", err)
		}
		if !strings.Contains(out, "ACTIONS") || !strings.Contains(out, "No matching resources") {
			t.Errorf("expected an empty ACTIONS section, got:\n%s", out)
		}
		if _, patches, _, _, _ := bmc.state(); patches != 0 {
			t.Errorf("expected no writes, got %d", patches)
		}
	})

	t.Run("missing filter is rejected before any fetch", func(t *testing.T) {
		t.Parallel()

		bmc := newFakeBMC(t)
		env := newTestEnv(t, noAuthConfig)

		_, err := env.run(t, "action", "--no-db", "--body", `{"AssetTag":"x"}`, bmc.URL)
		if !errors.Is(err, pipeline.ErrPatternTooBroad) {
			t.Errorf("expected ErrPatternTooBroad, got %v", err)
		}
		if _, patches, logins, _, _ := bmc.state(); patches != 0 || logins != 0 {
			t.Errorf("expected no contact with the service, got patches=%d logins=%d", patches, logins)
		}
	})

	t.Run("filter from the configuration file is used", func(t *testing.T) {
		t.Parallel()

		bmc := newFakeBMC(t)
		env := newTestEnv(t, "defaults:\n  auth: none\ntargets:\n  rack1:\n    base_uri: "+bmc.URL+
			"\n    filter: /redfish/v1/Systems/*\n")

		out, err := env.run(t, "action", "--no-db", "--body", `{"AssetTag":"rack1"}`, "--dry-run", "rack1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "PLANNED  PATCH /redfish/v1/Systems/1") {
			t.Errorf("expected planned action, got:\n%s", out)
		}
	})

	t.Run("rejects invalid input before any fetch", func(t *testing.T) {
		t.Parallel()

		bmc := newFakeBMC(t)
		env := newTestEnv(t, noAuthConfig)

		tests := []struct {
			args []string
			want error
		}{
			{[]string{"-f", "*", "--body", "{}"}, pipeline.ErrPatternTooBroad},
			{[]string{"-f", "/redfish/v1/Systems/*", "-X", "GET"}, pipeline.ErrInvalidMethod},
			{[]string{"-f", "/redfish/v1/Systems/*", "--body", "{not json"}, pipeline.ErrInvalidBody},
			{[]string{"-f", "/redfish/v1/Systems/*", "-X", "PUT"}, pipeline.ErrMissingBody},
		}
		for _, tt := range tests {
			args := append(append([]string{"--no-db"}, tt.args...), bmc.URL)
			if _, err := env.run(t, "action", args...); !errors.Is(err, tt.want) {
				t.Errorf("%v: expected %v, got %v", tt.args, tt.want, err)
			}
		}
		if _, patches, logins, _, _ := bmc.state(); patches != 0 || logins != 0 {
			t.Errorf("expected no contact with the service, got patches=%d logins=%d", patches, logins)
		}
	})
}
