package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ibnnafaa/nafaa/internal/audio"
	"github.com/ibnnafaa/nafaa/internal/cache"
	"github.com/ibnnafaa/nafaa/internal/config"
)

type brokenInput struct{}

func (brokenInput) Read([]byte) (int, error) {
	return 0, errors.New("input closed")
}

func TestRunSyncTUI_DisplayFailureWaitsForSync(t *testing.T) {
	cdn := newTestCDN(t)

	c := config.Default()
	c.CDN.Root = cdn.URL
	c.Catalog.Size = 3
	c.Cache.Backend = cache.BackendMemory
	c.Sync.Pacing = 100 * time.Millisecond

	app, err := newApp(c, withHTTPClient(cdn.Client()), withDevice(audio.NewMockDevice()))
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer app.Close() //nolint:errcheck

	_, err = runSyncTUI(context.Background(), app, "r", "128",
		tea.WithInput(brokenInput{}), tea.WithOutput(io.Discard))
	if err == nil {
		t.Fatal("expected the display error")
	}
	if app.syncer.Running() {
		t.Error("sync still running after runSyncTUI returned")
	}
}
