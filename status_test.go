package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/ibnnafaa/nafaa/internal/cache"
	"github.com/ibnnafaa/nafaa/internal/fetch"
	"github.com/ibnnafaa/nafaa/internal/locator"
	"github.com/ibnnafaa/nafaa/internal/playback"
	"github.com/ibnnafaa/nafaa/internal/syncer"
)

func TestPlayStatus(t *testing.T) {
	tests := []struct {
		out  playback.Outcome
		want string
	}{
		{playback.Outcome{Status: playback.PlayingFromCache}, "from cache"},
		{playback.Outcome{Status: playback.PlayingFromNetwork}, "Streaming item 1"},
		{playback.Outcome{Status: playback.AwaitingUserGesture}, "press Enter"},
		{playback.Outcome{Status: playback.Failed, Err: &fetch.NetworkError{StatusCode: http.StatusNotFound}}, "server answered 404"},
	}
	for _, tt := range tests {
		if got := playStatus(tt.out, "r", 1); !strings.Contains(got, tt.want) {
			t.Errorf("playStatus(%v) = %q, want it to contain %q", tt.out.Status, got, tt.want)
		}
	}
}

func TestDownloadStatus(t *testing.T) {
	if got := downloadStatus(fetch.Cached, nil, "r", 7); !strings.Contains(got, "already available offline") {
		t.Errorf("cached status = %q", got)
	}
	if got := downloadStatus(fetch.Downloaded, nil, "r", 7); !strings.Contains(got, "Downloaded item 7") {
		t.Errorf("downloaded status = %q", got)
	}
	err := fmt.Errorf("unable to store: %w", cache.ErrQuotaExceeded)
	if got := downloadStatus(0, err, "r", 7); !strings.Contains(got, "cache is full") {
		t.Errorf("error status = %q", got)
	}
}

func TestSyncStatus(t *testing.T) {
	report := syncer.Report{Progress: syncer.Progress{Completed: 114, Total: 114}, Downloaded: 113}

	got := syncStatus(report, &syncer.PartialError{Failed: []locator.ItemID{57}})
	if !strings.Contains(got, "1 items failed: 57") || !strings.Contains(got, "114/114") {
		t.Errorf("partial status = %q", got)
	}
	if got := syncStatus(report, nil); !strings.Contains(got, "available offline") {
		t.Errorf("ok status = %q", got)
	}
	if got := syncStatus(report, fmt.Errorf("%w: %w", syncer.ErrCanceled, errors.New("interrupt"))); !strings.Contains(got, "canceled") {
		t.Errorf("canceled status = %q", got)
	}
}

func TestStatsStatus(t *testing.T) {
	got := statsStatus(cache.Stats{
		Backend:   cache.BackendBolt,
		Partition: cache.DefaultPartition,
		Entries:   3,
		Bytes:     2_500_000,
	}, "/data/nafaa")

	for _, want := range []string{"bolt", cache.DefaultPartition, "/data/nafaa", "2.5 MB", "unlimited"} {
		if !strings.Contains(got, want) {
			t.Errorf("stats status missing %q:\n%s", want, got)
		}
	}
}
