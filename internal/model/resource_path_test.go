package model

import (
	"errors"
	"net/url"
	"testing"
)

func mustBase(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := ParseBaseURI(raw)
	if err != nil {
		t.Fatalf("ParseBaseURI(%q): %v", raw, err)
	}
	return u
}

// TestParseBaseURI tests base URI validation.
func TestParseBaseURI(t *testing.T) {
	t.Parallel()

	t.Run("keeps scheme and host only", func(t *testing.T) {
		t.Parallel()
		u := mustBase(t, "HTTPS://BMC.example:8443/redfish/v1/")
		if got := u.String(); got != "https://bmc.example:8443" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("rejects missing host", func(t *testing.T) {
		t.Parallel()
		_, err := ParseBaseURI("/redfish/v1")
		if !errors.Is(err, ErrInvalidBaseURI) {
			t.Errorf("expected ErrInvalidBaseURI, got %v", err)
		}
	})
}

// TestNormalizeURL tests the visited-set key.
func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"relative", "/redfish/v1/Systems", "https://bmc/redfish/v1/Systems"},
		{"relative trailing slash", "/redfish/v1/Systems/", "https://bmc/redfish/v1/Systems"},
		{"relative without leading slash", "redfish/v1", "https://bmc/redfish/v1"},
		{"absolute", "https://bmc/redfish/v1/Systems/1", "https://bmc/redfish/v1/Systems/1"},
		{"double slash after authority", "https://bmc//redfish/v1", "https://bmc/redfish/v1"},
		{"double slash inside path", "/redfish//v1///Chassis", "https://bmc/redfish/v1/Chassis"},
		{"fragment dropped", "/redfish/v1/Systems/1#/Oem", "https://bmc/redfish/v1/Systems/1"},
		{"query kept", "/redfish/v1/Entries?$skip=50", "https://bmc/redfish/v1/Entries?$skip=50"},
		{"uppercase host", "https://BMC/redfish/v1", "https://bmc/redfish/v1"},
		{"root", "/", "https://bmc/"},
	}

	base := mustBase(t, "https://bmc")
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeURL(base, tc.input); got != tc.expected {
				t.Errorf("NormalizeURL(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}

// TestNormalizeURLEquivalence tests that equivalent spellings share one key.
func TestNormalizeURLEquivalence(t *testing.T) {
	t.Parallel()

	base := mustBase(t, "https://bmc")
	spellings := []string{
		"/redfish/v1/Managers/1",
		"/redfish/v1/Managers/1/",
		"https://bmc/redfish/v1/Managers/1",
		"https://bmc//redfish/v1/Managers/1/",
	}
	want := NormalizeURL(base, spellings[0])
	for _, s := range spellings[1:] {
		if got := NormalizeURL(base, s); got != want {
			t.Errorf("NormalizeURL(%q) = %q, expected %q", s, got, want)
		}
	}
}

// TestRelativePath tests conversion to base-relative form.
func TestRelativePath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"already relative", "/redfish/v1/Systems", "/redfish/v1/Systems"},
		{"base prefix stripped", "https://bmc/redfish/v1/Systems/", "/redfish/v1/Systems/"},
		{"other host keeps path", "https://other:8443/redfish/v1/Chassis", "/redfish/v1/Chassis"},
		{"missing leading slash", "redfish/v1", "/redfish/v1"},
		{"star pattern", "*", "/*"},
		{"fragment dropped", "/redfish/v1#x", "/redfish/v1"},
		{"host sharing the base prefix", "https://bmc2/redfish/v1/Systems", "/redfish/v1/Systems"},
		{"base host on another port", "https://bmc:8443/redfish/v1/Systems", "/redfish/v1/Systems"},
		{"bare base", "https://bmc", "/"},
	}

	base := mustBase(t, "https://bmc")
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := RelativePath(base, tc.input); got != tc.expected {
				t.Errorf("RelativePath(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}

// TestSameOrigin tests origin comparison.
func TestSameOrigin(t *testing.T) {
	t.Parallel()

	base := mustBase(t, "https://bmc")
	if !SameOrigin(base, "/redfish/v1") {
		t.Error("relative path should be same origin")
	}
	if !SameOrigin(base, "HTTPS://BMC/redfish/v1") {
		t.Error("case differences should not matter")
	}
	if SameOrigin(base, "http://bmc/redfish/v1") {
		t.Error("different scheme should not be same origin")
	}
	if SameOrigin(base, "https://other/redfish/v1") {
		t.Error("different host should not be same origin")
	}
}

// TestTrimPath tests trailing slash removal.
func TestTrimPath(t *testing.T) {
	t.Parallel()

	if got := TrimPath("/redfish/v1/"); got != "/redfish/v1" {
		t.Errorf("got %q", got)
	}
	if got := TrimPath("/a//b/?$top=1"); got != "/a/b?$top=1" {
		t.Errorf("got %q", got)
	}
}
