package diff

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/nao1215/redfishscan/internal/database"
	"github.com/nao1215/redfishscan/internal/document"
)

// ChangeKind classifies a difference between two runs.
type ChangeKind string

const (
	// Added means the path exists only in the newer run.
	Added ChangeKind = "added"

	// Removed means the path exists only in the older run.
	Removed ChangeKind = "removed"

	// Modified means the path exists in both runs with different content.
	Modified ChangeKind = "modified"
)

// Change is one path that differs between two runs.
type Change struct {
	Path      string     `json:"path"`
	Kind      ChangeKind `json:"kind"`
	ODataType string     `json:"odata_type,omitempty"`

	// LinesAdded and LinesDeleted count changed lines of the indented body.
	LinesAdded   int `json:"lines_added"`
	LinesDeleted int `json:"lines_deleted"`

	// Patch lists the changed lines prefixed with "+" or "-".
	Patch string `json:"patch,omitempty"`
}

// Result is the comparison of two runs.
type Result struct {
	OldRunID string `json:"old_run_id"`
	NewRunID string `json:"new_run_id"`

	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`

	// Changes is sorted by path.
	Changes []Change `json:"changes"`
}

// HasChanges reports whether anything was added, removed or modified.
func (r *Result) HasChanges() bool {
	return len(r.Changes) > 0
}

// Differ compares snapshot sets.
type Differ struct {
	dmp        *diffmatchpatch.DiffMatchPatch
	ignoreKeys map[string]struct{}
}

// Option configures a Differ.
type Option func(*Differ)

// WithIgnoreKeys drops the named top-level properties before comparing.
// Useful for counters and timestamps that change on every read.
func WithIgnoreKeys(keys ...string) Option {
	return func(d *Differ) {
		for _, k := range keys {
			if k = strings.TrimSpace(k); k != "" {
				d.ignoreKeys[k] = struct{}{}
			}
		}
	}
}

// NewDiffer creates a Differ.
func NewDiffer(opts ...Option) *Differ {
	d := &Differ{
		dmp:        diffmatchpatch.New(),
		ignoreKeys: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Compare diffs the snapshots of two runs.
func (d *Differ) Compare(oldRunID string, oldSnaps []database.SnapshotRecord, newRunID string, newSnaps []database.SnapshotRecord) *Result {
	result := &Result{
		OldRunID: oldRunID,
		NewRunID: newRunID,
		Changes:  make([]Change, 0),
	}

	oldByPath := make(map[string]database.SnapshotRecord, len(oldSnaps))
	for _, s := range oldSnaps {
		oldByPath[s.Path] = s
	}
	newByPath := make(map[string]database.SnapshotRecord, len(newSnaps))
	for _, s := range newSnaps {
		newByPath[s.Path] = s
	}

	for path, n := range newByPath {
		o, ok := oldByPath[path]
		if !ok {
			text := d.render(n)
			result.Changes = append(result.Changes, Change{
				Path:       path,
				Kind:       Added,
				ODataType:  n.ODataType,
				LinesAdded: countLines(text),
				Patch:      prefixLines("+", text),
			})
			result.Added++
			continue
		}

		oldText, newText := d.render(o), d.render(n)
		if oldText == newText {
			result.Unchanged++
			continue
		}
		change := d.lineDiff(oldText, newText)
		change.Path = path
		change.Kind = Modified
		change.ODataType = n.ODataType
		result.Changes = append(result.Changes, change)
		result.Modified++
	}

	for path, o := range oldByPath {
		if _, ok := newByPath[path]; ok {
			continue
		}
		text := d.render(o)
		result.Changes = append(result.Changes, Change{
			Path:         path,
			Kind:         Removed,
			ODataType:    o.ODataType,
			LinesDeleted: countLines(text),
			Patch:        prefixLines("-", text),
		})
		result.Removed++
	}

	sort.Slice(result.Changes, func(i, j int) bool {
		return result.Changes[i].Path < result.Changes[j].Path
	})
	return result
}

// render returns the text compared for one snapshot: the indented body
// without ignored keys, or the error line of a failed snapshot.
func (d *Differ) render(rec database.SnapshotRecord) string {
	if rec.Error != "" {
		return "error: " + rec.Error + "\n"
	}
	if rec.Body == "" {
		return ""
	}

	doc, err := document.Decode([]byte(rec.Body))
	if err != nil {
		return rec.Body + "\n"
	}
	if doc.Kind() == document.KindObject {
		kept := make([]document.Member, 0, len(doc.Members()))
		for _, m := range doc.Members() {
			if _, skip := d.ignoreKeys[m.Key]; skip {
				continue
			}
			kept = append(kept, m)
		}
		doc = document.NewObject(kept...)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return rec.Body + "\n"
	}
	return string(out) + "\n"
}

// lineDiff runs a line-mode diff and renders the changed lines.
func (d *Differ) lineDiff(oldText, newText string) Change {
	chars1, chars2, lines := d.dmp.DiffLinesToChars(oldText, newText)
	diffs := d.dmp.DiffMain(chars1, chars2, false)
	diffs = d.dmp.DiffCharsToLines(diffs, lines)

	var change Change
	var patch strings.Builder
	for _, df := range diffs {
		switch df.Type {
		case diffmatchpatch.DiffInsert:
			change.LinesAdded += countLines(df.Text)
			patch.WriteString(prefixLines("+", df.Text))
		case diffmatchpatch.DiffDelete:
			change.LinesDeleted += countLines(df.Text)
			patch.WriteString(prefixLines("-", df.Text))
		}
	}
	change.Patch = patch.String()
	return change
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

func prefixLines(prefix, text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		b.WriteString(prefix)
		b.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}
