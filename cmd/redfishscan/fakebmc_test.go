package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// fakeBMC is a small in-memory Redfish service with one system, one SEL
// log and session support.
type fakeBMC struct {
	*httptest.Server

	mu        sync.Mutex
	assetTag  string
	patches   int
	logins    int
	logouts   int
	tokenSeen bool
}

const fakeToken = "fake-session-token"

func newFakeBMC(t *testing.T) *fakeBMC {
	t.Helper()

	bmc := &fakeBMC{assetTag: "initial"}
	bmc.Server = httptest.NewServer(http.HandlerFunc(bmc.serve))
	t.Cleanup(bmc.Close)
	return bmc
}

func (b *fakeBMC) serve(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r.Header.Get("X-Auth-Token") == fakeToken {
		b.tokenSeen = true
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/redfish/v1/SessionService/Sessions":
		b.logins++
		w.Header().Set("X-Auth-Token", fakeToken)
		w.Header().Set("Location", "/redfish/v1/SessionService/Sessions/1")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"@odata.id":"/redfish/v1/SessionService/Sessions/1"}`)
		return
	case r.Method == http.MethodDelete && r.URL.Path == "/redfish/v1/SessionService/Sessions/1":
		b.logouts++
		w.WriteHeader(http.StatusNoContent)
		return
	case r.Method == http.MethodPatch && r.URL.Path == "/redfish/v1/Systems/1":
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if tag, ok := body["AssetTag"].(string); ok {
			b.assetTag = tag
		}
		b.patches++
		w.WriteHeader(http.StatusNoContent)
		return
	case r.Method != http.MethodGet:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	doc, allow, ok := b.resource(r.URL.Path)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"message":"resource not found"}}`)
		return
	}
	if allow != "" {
		w.Header().Set("Allow", allow)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func link(p string) map[string]any {
	return map[string]any{"@odata.id": p}
}

func (b *fakeBMC) resource(p string) (map[string]any, string, bool) {
	const sel = "/redfish/v1/Systems/1/LogServices/SEL"

	switch strings.TrimSuffix(p, "/") {
	case "/redfish/v1":
		return map[string]any{
			"@odata.id":   "/redfish/v1",
			"@odata.type": "#ServiceRoot.v1_5_0.ServiceRoot",
			"Systems":     link("/redfish/v1/Systems"),
			"Managers":    link("/redfish/v1/Managers"),
		}, "GET", true
	case "/redfish/v1/Systems":
		return map[string]any{
			"@odata.id":   "/redfish/v1/Systems",
			"@odata.type": "#ComputerSystemCollection.ComputerSystemCollection",
			"Members":     []any{link("/redfish/v1/Systems/1")},
		}, "GET", true
	case "/redfish/v1/Systems/1":
		return map[string]any{
			"@odata.id":   "/redfish/v1/Systems/1",
			"@odata.type": "#ComputerSystem.v1_13_0.ComputerSystem",
			"AssetTag":    b.assetTag,
			"LogServices": link("/redfish/v1/Systems/1/LogServices"),
		}, "GET, PATCH", true
	case "/redfish/v1/Systems/1/LogServices":
		return map[string]any{
			"@odata.id":   "/redfish/v1/Systems/1/LogServices",
			"@odata.type": "#LogServiceCollection.LogServiceCollection",
			"Members":     []any{link(sel)},
		}, "GET", true
	case sel:
		return map[string]any{
			"@odata.id":   sel,
			"@odata.type": "#LogService.v1_1_0.LogService",
			"Entries":     link(sel + "/Entries"),
		}, "GET", true
	case sel + "/Entries":
		return map[string]any{
			"@odata.id":   sel + "/Entries",
			"@odata.type": "#LogEntryCollection.LogEntryCollection",
			"Members":     []any{link(sel + "/Entries/1"), link(sel + "/Entries/2")},
		}, "GET", true
	case sel + "/Entries/1":
		return map[string]any{
			"@odata.id":   sel + "/Entries/1",
			"@odata.type": "#LogEntry.v1_9_0.LogEntry",
			"Id":          "1",
			"Created":     "2026-01-02T03:04:05Z",
			"Severity":    "Critical",
			"Message":     "Fan 3 failed",
			"MessageId":   "Platform.1.0.FanFailed",
			"EntryType":   "SEL",
		}, "GET", true
	case sel + "/Entries/2":
		return map[string]any{
			"@odata.id":   sel + "/Entries/2",
			"@odata.type": "#LogEntry.v1_9_0.LogEntry",
			"Id":          "2",
			"Created":     "2025-06-01T00:00:00Z",
			"Severity":    "OK",
			"Message":     "System powered on",
			"MessageId":   "Platform.1.0.PowerOn",
			"EntryType":   "SEL",
		}, "GET", true
	case "/redfish/v1/Managers":
		// The dangling member yields one fetch failure per crawl.
		return map[string]any{
			"@odata.id":   "/redfish/v1/Managers",
			"@odata.type": "#ManagerCollection.ManagerCollection",
			"Members":     []any{link("/redfish/v1/Managers/missing")},
		}, "GET", true
	default:
		return nil, "", false
	}
}

func (b *fakeBMC) state() (assetTag string, patches, logins, logouts int, tokenSeen bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.assetTag, b.patches, b.logins, b.logouts, b.tokenSeen
}

// testEnv isolates a CLI run: its own history directory and an explicit
// configuration file so no user file is picked up.
type testEnv struct {
	dbDir      string
	configPath string
}

func newTestEnv(t *testing.T, configYAML string) testEnv {
	t.Helper()

	dir := t.TempDir()
	env := testEnv{
		dbDir:      filepath.Join(dir, "db"),
		configPath: filepath.Join(dir, "config.yaml"),
	}
	if err := os.WriteFile(env.configPath, []byte(configYAML), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return env
}

// run executes the root command with the environment's flags appended
// after the subcommand.
func (e testEnv) run(t *testing.T, subcommand string, args ...string) (string, error) {
	t.Helper()

	full := []string{subcommand, "-c", e.configPath, "--db-dir", e.dbDir}
	full = append(full, args...)

	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(full)

	err := root.Execute()
	return stdout.String(), err
}
