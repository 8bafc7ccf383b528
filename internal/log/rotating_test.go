package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Parallel()

	t.Run("empty path", func(t *testing.T) {
		t.Parallel()

		if _, err := NewRotatingWriter(FileOptions{}); !errors.Is(err, ErrEmptyLogPath) {
			t.Errorf("expected ErrEmptyLogPath, got %v", err)
		}
	})

	t.Run("creates parent directory", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", "logs", "redfishscan.log")
		w, err := NewRotatingWriter(DefaultFileOptions(path))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := w.Write([]byte("hello\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}

		data, err := os.ReadFile(path) //nolint:gosec // test path
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(data) != "hello\n" {
			t.Errorf("unexpected content %q", data)
		}
	})
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("without file", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger, closer, err := NewLogger(&buf, false, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer closer.Close()

		logger.Warn("disk low", "password", "calvin")
		if !strings.Contains(buf.String(), "disk low") || strings.Contains(buf.String(), "calvin") {
			t.Errorf("unexpected output: %s", buf.String())
		}
	})

	t.Run("with file writes JSON to both sinks", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		path := filepath.Join(t.TempDir(), "scan.log")
		logger, closer, err := NewLogger(&buf, true, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		logger.With("target", "bmc-a").Debug("fetched", "x-auth-token", "tok-1")
		if err := closer.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}

		if !strings.Contains(buf.String(), "fetched") {
			t.Errorf("expected stderr output, got %s", buf.String())
		}

		data, err := os.ReadFile(path) //nolint:gosec // test path
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		line := string(data)
		if !strings.Contains(line, `"msg":"fetched"`) || !strings.Contains(line, `"target":"bmc-a"`) {
			t.Errorf("unexpected file content %s", line)
		}
		if strings.Contains(line, "tok-1") {
			t.Errorf("token leaked to file: %s", line)
		}
	})
}
