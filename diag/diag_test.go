package diag

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ausocean/utils/logging"
)

func TestNewFileLoggerWritesExtra(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultFileLoggerConfig(filepath.Join(dir, "decode.log"))
	cfg.Level = logging.Debug

	var buf bytes.Buffer
	log := NewFileLogger(cfg, &buf)
	log.Log(logging.Info, "decode started", "file", "test.bbl")

	if buf.Len() == 0 {
		t.Error("expected log output to reach the extra writer")
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		t.Errorf("expected log file to be created: %v", err)
	}
}

func TestDefaultFileLoggerConfig(t *testing.T) {
	cfg := DefaultFileLoggerConfig("/tmp/x.log")
	if cfg.MaxSizeMB != 500 || cfg.MaxBackups != 10 || cfg.MaxAgeDays != 28 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
