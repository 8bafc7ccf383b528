package diff

import (
	"strings"
	"testing"

	"github.com/nao1215/redfishscan/internal/database"
)

func rec(path, body string) database.SnapshotRecord {
	return database.SnapshotRecord{Path: path, Body: body}
}

// TestCompare tests added, removed, modified and unchanged detection.
func TestCompare(t *testing.T) {
	t.Parallel()

	oldSnaps := []database.SnapshotRecord{
		rec("/redfish/v1", `{"Id":"RootService"}`),
		rec("/redfish/v1/Systems/1", `{"Id":"1","PowerState":"On","Count":1}`),
		rec("/redfish/v1/Chassis/1", `{"Id":"1"}`),
	}
	newSnaps := []database.SnapshotRecord{
		rec("/redfish/v1", `{"Id":"RootService"}`),
		rec("/redfish/v1/Systems/1", `{"Id":"1","PowerState":"Off","Count":2}`),
		rec("/redfish/v1/Managers/BMC", `{"Id":"BMC"}`),
	}

	result := NewDiffer().Compare("old", oldSnaps, "new", newSnaps)

	if result.OldRunID != "old" || result.NewRunID != "new" {
		t.Errorf("run IDs = %q, %q", result.OldRunID, result.NewRunID)
	}
	if result.Added != 1 || result.Removed != 1 || result.Modified != 1 || result.Unchanged != 1 {
		t.Errorf("counts = +%d -%d ~%d =%d", result.Added, result.Removed, result.Modified, result.Unchanged)
	}
	if !result.HasChanges() {
		t.Error("expected changes")
	}

	wantOrder := []struct {
		path string
		kind ChangeKind
	}{
		{"/redfish/v1/Chassis/1", Removed},
		{"/redfish/v1/Managers/BMC", Added},
		{"/redfish/v1/Systems/1", Modified},
	}
	if len(result.Changes) != len(wantOrder) {
		t.Fatalf("expected %d changes, got %+v", len(wantOrder), result.Changes)
	}
	for i, w := range wantOrder {
		if result.Changes[i].Path != w.path || result.Changes[i].Kind != w.kind {
			t.Errorf("change %d = %s %s, want %s %s", i, result.Changes[i].Kind, result.Changes[i].Path, w.kind, w.path)
		}
	}

	modified := result.Changes[2]
	if modified.LinesAdded != 2 || modified.LinesDeleted != 2 {
		t.Errorf("modified lines = +%d -%d", modified.LinesAdded, modified.LinesDeleted)
	}
	for _, line := range []string{`-  "PowerState": "On",`, `+  "PowerState": "Off",`} {
		if !strings.Contains(modified.Patch, line) {
			t.Errorf("patch lacks %q:\n%s", line, modified.Patch)
		}
	}
	if strings.Contains(modified.Patch, `"Id"`) {
		t.Errorf("patch should only hold changed lines:\n%s", modified.Patch)
	}

	added := result.Changes[1]
	if added.LinesAdded != 3 || !strings.HasPrefix(added.Patch, "+{") {
		t.Errorf("unexpected added change %+v", added)
	}
	removed := result.Changes[0]
	if removed.LinesDeleted != 3 || !strings.HasPrefix(removed.Patch, "-{") {
		t.Errorf("unexpected removed change %+v", removed)
	}
}

// TestCompareIgnoreKeys tests that ignored properties do not count.
func TestCompareIgnoreKeys(t *testing.T) {
	t.Parallel()

	oldSnaps := []database.SnapshotRecord{rec("/redfish/v1/Systems/1", `{"Id":"1","PowerState":"On","Count":1}`)}
	newSnaps := []database.SnapshotRecord{rec("/redfish/v1/Systems/1", `{"Id":"1","PowerState":"Off","Count":2}`)}

	result := NewDiffer(WithIgnoreKeys("Count", " ")).Compare("a", oldSnaps, "b", newSnaps)
	if result.Modified != 1 {
		t.Fatalf("expected 1 modified, got %+v", result)
	}
	if c := result.Changes[0]; c.LinesAdded != 1 || c.LinesDeleted != 1 {
		t.Errorf("expected one line each way, got +%d -%d", c.LinesAdded, c.LinesDeleted)
	}

	onlyVolatile := []database.SnapshotRecord{rec("/redfish/v1/Systems/1", `{"Id":"1","PowerState":"On","Count":9}`)}
	result = NewDiffer(WithIgnoreKeys("Count")).Compare("a", oldSnaps, "b", onlyVolatile)
	if result.HasChanges() || result.Unchanged != 1 {
		t.Errorf("expected no changes, got %+v", result)
	}
}

// TestCompareErrors tests failed snapshots and undecodable bodies.
func TestCompareErrors(t *testing.T) {
	t.Parallel()

	failed := database.SnapshotRecord{Path: "/redfish/v1/Chassis", Error: "GET /redfish/v1/Chassis: 503"}
	ok := rec("/redfish/v1/Chassis", `{"Members":[]}`)

	result := NewDiffer().Compare("a", []database.SnapshotRecord{failed}, "b", []database.SnapshotRecord{ok})
	if result.Modified != 1 {
		t.Fatalf("expected recovery to count as modified, got %+v", result)
	}
	if !strings.Contains(result.Changes[0].Patch, "-error: GET /redfish/v1/Chassis: 503") {
		t.Errorf("patch = %q", result.Changes[0].Patch)
	}

	same := NewDiffer().Compare("a", []database.SnapshotRecord{failed}, "b", []database.SnapshotRecord{failed})
	if same.HasChanges() {
		t.Errorf("identical failures should be unchanged, got %+v", same)
	}

	raw := NewDiffer().Compare("a", []database.SnapshotRecord{rec("/x", "not json")}, "b", []database.SnapshotRecord{rec("/x", "still not json")})
	if raw.Modified != 1 {
		t.Errorf("expected raw bodies to be compared as text, got %+v", raw)
	}
}

// TestHelpers tests line counting and prefixing.
func TestHelpers(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		text  string
		lines int
		want  string
	}{
		{"", 0, ""},
		{"a\n", 1, "+a\n"},
		{"a\nb", 2, "+a\n+b\n"},
		{"a\nb\n", 2, "+a\n+b\n"},
	}
	for _, tc := range testCases {
		if got := countLines(tc.text); got != tc.lines {
			t.Errorf("countLines(%q) = %d, want %d", tc.text, got, tc.lines)
		}
		if got := prefixLines("+", tc.text); got != tc.want {
			t.Errorf("prefixLines(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}
