package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"andamento/internal/config"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("ANDAMENTO_TEST_KEY=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ANDAMENTO_TEST_KEY", "")
	os.Unsetenv("ANDAMENTO_TEST_KEY")

	LoadEnvFile(path)

	if got := os.Getenv("ANDAMENTO_TEST_KEY"); got != "from-file" {
		t.Fatalf("ANDAMENTO_TEST_KEY = %q", got)
	}
}

func TestLoadEnvFile_MissingIsIgnored(t *testing.T) {
	LoadEnvFile(filepath.Join(t.TempDir(), "nope.env"))
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, "importer")
	if logger.Component() != "importer" {
		t.Errorf("component = %q", logger.Component())
	}
	if !logger.Enabled(context.Background(), -4) {
		t.Error("debug level should be enabled")
	}
}

func TestSignalContext_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := SignalContext(parent, nil)
	defer stop()

	cancel()
	<-ctx.Done()
}
