package model

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nao1215/redfishscan/internal/document"
)

// TestParseAllowHeader tests splitting of the Allow header.
func TestParseAllowHeader(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", []string{}},
		{"single", "GET", []string{"GET"}},
		{"comma space", "GET, PATCH, HEAD", []string{"GET", "PATCH", "HEAD"}},
		{"comma only", "GET,POST", []string{"GET", "POST"}},
		{"mixed whitespace", "GET,\tPOST,  DELETE", []string{"GET", "POST", "DELETE"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ParseAllowHeader(tc.input)
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("ParseAllowHeader(%q) = %#v, expected %#v", tc.input, got, tc.expected)
			}
		})
	}
}

// TestNewSnapshot tests augmentation with the supported methods member.
func TestNewSnapshot(t *testing.T) {
	t.Parallel()

	doc, err := document.Decode([]byte(`{"@odata.id":"/redfish/v1","@odata.type":"#ServiceRoot.v1_5_0.ServiceRoot"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	snap := NewSnapshot("/redfish/v1", "https://bmc/redfish/v1", 200, []string{"GET", "HEAD"}, doc)

	t.Run("adds methods as last member", func(t *testing.T) {
		t.Parallel()
		want := `{"@odata.id":"/redfish/v1","@odata.type":"#ServiceRoot.v1_5_0.ServiceRoot","SupportedHTTPMethods":["GET","HEAD"]}`
		if got := string(snap.Body()); got != want {
			t.Errorf("got %s\nexpected %s", got, want)
		}
	})

	t.Run("exposes odata type", func(t *testing.T) {
		t.Parallel()
		if got := snap.ODataType(); got != "#ServiceRoot.v1_5_0.ServiceRoot" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("allows advertised methods only", func(t *testing.T) {
		t.Parallel()
		if !snap.Allows("GET") || snap.Allows("PATCH") {
			t.Errorf("unexpected Allows result for %v", snap.Methods)
		}
	})

	t.Run("hash is stable hex", func(t *testing.T) {
		t.Parallel()
		h := snap.Hash()
		if len(h) != 64 {
			t.Errorf("expected 64 hex chars, got %d", len(h))
		}
		if h != snap.Hash() {
			t.Error("hash is not deterministic")
		}
	})
}

// TestNewSnapshotWithoutAllow tests the empty-list default.
func TestNewSnapshotWithoutAllow(t *testing.T) {
	t.Parallel()

	doc := document.NewObject()
	snap := NewSnapshot("/x", "https://bmc/x", 200, nil, doc)
	if got := string(snap.Body()); got != `{"SupportedHTTPMethods":[]}` {
		t.Errorf("got %s", got)
	}
	if snap.Methods == nil {
		t.Error("Methods should be an empty slice, not nil")
	}
}

// TestNewErrorSnapshot tests failed snapshots.
func TestNewErrorSnapshot(t *testing.T) {
	t.Parallel()

	snap := NewErrorSnapshot("/x", "https://bmc/x", 503, errors.New("service unavailable"))
	if !snap.Failed() {
		t.Error("expected Failed to be true")
	}
	if snap.Body() != nil {
		t.Error("failed snapshot should have no body")
	}
	if snap.Error != "service unavailable" {
		t.Errorf("got %q", snap.Error)
	}
}
