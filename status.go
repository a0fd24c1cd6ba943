package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/ibnnafaa/nafaa/internal/cache"
	"github.com/ibnnafaa/nafaa/internal/fetch"
	"github.com/ibnnafaa/nafaa/internal/locator"
	"github.com/ibnnafaa/nafaa/internal/playback"
	"github.com/ibnnafaa/nafaa/internal/syncer"
)

// Status messages shown after each command.

func playStatus(out playback.Outcome, reciter string, item locator.ItemID) string {
	what := fmt.Sprintf("item %d (%s)", item, reciter)
	switch out.Status {
	case playback.PlayingFromCache:
		return okStyle.Render("▶ Playing "+what) + dimStyle.Render(" from cache")
	case playback.PlayingFromNetwork:
		return okStyle.Render("▶ Streaming "+what) + dimStyle.Render(" and caching it for offline use")
	case playback.AwaitingUserGesture:
		return warnStyle.Render("Playback of " + what + " is waiting for you: press Enter to start")
	default:
		return errStyle.Render(fmt.Sprintf("Could not play %s: %v", what, describeError(out.Err)))
	}
}

func downloadStatus(res fetch.Result, err error, reciter string, item locator.ItemID) string {
	what := fmt.Sprintf("item %d (%s)", item, reciter)
	switch {
	case err != nil:
		return errStyle.Render(fmt.Sprintf("Could not download %s: %v", what, describeError(err)))
	case res == fetch.Cached:
		return okStyle.Render(what) + dimStyle.Render(" is already available offline")
	default:
		return okStyle.Render("Downloaded " + what)
	}
}

func syncStatus(report syncer.Report, err error) string {
	summary := fmt.Sprintf("%d/%d items: %d downloaded, %d already cached",
		report.Completed, report.Total, report.Downloaded, report.Cached)

	var partial *syncer.PartialError
	switch {
	case err == nil:
		return okStyle.Render("Catalog available offline") + dimStyle.Render(" · "+summary)
	case errors.As(err, &partial):
		ids := make([]string, len(partial.Failed))
		for i, id := range partial.Failed {
			ids[i] = fmt.Sprint(int(id))
		}
		return warnStyle.Render(fmt.Sprintf("%d items failed: %s", len(partial.Failed), strings.Join(ids, ", "))) +
			dimStyle.Render(" · "+summary)
	case errors.Is(err, syncer.ErrCanceled):
		return warnStyle.Render("Download canceled") + dimStyle.Render(" · "+summary)
	default:
		return errStyle.Render(fmt.Sprintf("Download stopped: %v", describeError(err))) + dimStyle.Render(" · "+summary)
	}
}

func statsStatus(stats cache.Stats, dir string) string {
	capacity := "unlimited"
	if stats.Capacity > 0 {
		capacity = humanize.Bytes(uint64(stats.Capacity)) //nolint:gosec
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", keyword("Backend:  "), stats.Backend)
	fmt.Fprintf(&b, "%s %s\n", keyword("Partition:"), stats.Partition)
	if dir != "" && stats.Backend != cache.BackendMemory {
		fmt.Fprintf(&b, "%s %s\n", keyword("Location: "), dir)
	}
	fmt.Fprintf(&b, "%s %d\n", keyword("Entries:  "), stats.Entries)
	fmt.Fprintf(&b, "%s %s of %s", keyword("Size:     "), humanize.Bytes(uint64(stats.Bytes)), capacity) //nolint:gosec
	return b.String()
}

// describeError shortens well-known failures for the status line.
func describeError(err error) string {
	var netErr *fetch.NetworkError
	switch {
	case err == nil:
		return "unknown error"
	case errors.As(err, &netErr) && netErr.StatusCode != 0:
		return fmt.Sprintf("server answered %d", netErr.StatusCode)
	case errors.Is(err, fetch.ErrNetwork):
		return "network unreachable"
	case errors.Is(err, cache.ErrQuotaExceeded):
		return "cache is full"
	case errors.Is(err, cache.ErrUnavailable):
		return "cache unavailable"
	default:
		return err.Error()
	}
}
