package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/ibnnafaa/nafaa/internal/audio"
	"github.com/ibnnafaa/nafaa/internal/cache"
	"github.com/ibnnafaa/nafaa/internal/fetch"
	"github.com/ibnnafaa/nafaa/internal/locator"
)

// harness wires an engine to a counting CDN, a memory store and a mock
// device whose network sources go through the same client.
type harness struct {
	engine *Engine
	store  *cache.MemoryStore
	device *audio.MockDevice
	loc    locator.Locator
	hits   atomic.Int32
}

func newHarness(t *testing.T, deviceOpts ...audio.MockOption) *harness {
	t.Helper()
	h := &harness{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.hits.Add(1)
		if strings.Contains(r.URL.Path, "missing") {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, "audio:%s", r.URL.Path)
	}))
	t.Cleanup(srv.Close)

	logger := log.New(&bytes.Buffer{})
	client := fetch.NewClient(srv.Client(), fetch.DefaultClientConfig())
	h.loc = locator.New(srv.URL)
	h.store = cache.NewMemoryStore(cache.DefaultPartition, 0)
	h.device = audio.NewMockDevice(append([]audio.MockOption{audio.WithOpener(client)}, deviceOpts...)...)
	h.engine = NewEngine(Config{
		Store:      h.store,
		Device:     h.device,
		Background: fetch.NewFetcher(h.store, client, h.loc, logger),
		Locator:    h.loc,
		Logger:     logger,
	})
	return h
}

func (h *harness) seed(t *testing.T, reciter string, item locator.ItemID, tier string) locator.Key {
	t.Helper()
	key := h.loc.Locate(reciter, item, tier)
	if _, err := h.store.WriteIfAbsent(context.Background(), key, []byte("cached")); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return key
}

func TestPlay_CacheHitMakesNoRequest(t *testing.T) {
	h := newHarness(t)
	key := h.seed(t, "r", 1, "128")

	out := h.engine.Play(context.Background(), "r", 1, "128")
	h.engine.Wait()

	if out.Status != PlayingFromCache {
		t.Fatalf("status = %v, want playing from cache", out.Status)
	}
	if out.Key != key {
		t.Errorf("key = %q, want %q", out.Key, key)
	}
	if got := h.hits.Load(); got != 0 {
		t.Errorf("network requests = %d, want 0", got)
	}
	if h.device.Bound().Origin != audio.OriginCache {
		t.Errorf("bound origin = %v, want cache", h.device.Bound().Origin)
	}
}

func TestPlay_CacheMissStreamsThenCaches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out := h.engine.Play(ctx, "r", 2, "128")
	if out.Status != PlayingFromNetwork {
		t.Fatalf("status = %v, want playing from network", out.Status)
	}
	h.engine.Wait()

	if !h.store.Exists(ctx, out.Key) {
		t.Fatal("background fetch did not cache the entry")
	}

	before := h.hits.Load()
	out = h.engine.Play(ctx, "r", 2, "128")
	if out.Status != PlayingFromCache {
		t.Errorf("second play status = %v, want playing from cache", out.Status)
	}
	if h.hits.Load() != before {
		t.Error("second play hit the network")
	}
}

func TestPlay_BackgroundFailureDoesNotAffectOutcome(t *testing.T) {
	h := newHarness(t)
	// Device streams without the opener so only the background fetch sees 404
	h.device = audio.NewMockDevice()
	h.engine.device = h.device

	var bgErr error
	h.engine.onBackground = func(_ locator.Key, _ fetch.Result, err error) { bgErr = err }

	out := h.engine.Play(context.Background(), "missing", 3, "128")
	h.engine.Wait()

	if out.Status != PlayingFromNetwork {
		t.Fatalf("status = %v, want playing from network", out.Status)
	}
	if !errors.Is(bgErr, fetch.ErrNetwork) {
		t.Errorf("background error = %v, want network error", bgErr)
	}
	if h.store.Exists(context.Background(), out.Key) {
		t.Error("failed background fetch left an entry")
	}
}

func TestPlay_UnreachableFails(t *testing.T) {
	h := newHarness(t)

	out := h.engine.Play(context.Background(), "missing", 4, "128")
	h.engine.Wait()

	if out.Status != Failed {
		t.Fatalf("status = %v, want failed", out.Status)
	}
	if !errors.Is(out.Err, fetch.ErrNetwork) {
		t.Errorf("err = %v, want network error", out.Err)
	}
	if _, fired := h.engine.Interact(context.Background()); fired {
		t.Error("a gesture was armed after a failure")
	}
}

func TestPlay_UnreachableUnderGestureFails(t *testing.T) {
	h := newHarness(t, audio.WithGestureRequired())

	out := h.engine.Play(context.Background(), "missing", 4, "128")
	h.engine.Wait()

	if out.Status != Failed {
		t.Fatalf("status = %v, want failed", out.Status)
	}
	if !errors.Is(out.Err, fetch.ErrNetwork) {
		t.Errorf("err = %v, want network error", out.Err)
	}
	if out.Gesture != nil || h.engine.Session().Armed {
		t.Error("a gesture was armed for an unreachable resource")
	}
	if got := h.hits.Load(); got != 1 {
		t.Errorf("network requests = %d, want 1", got)
	}
}

func TestPlay_GestureRetryReusesStream(t *testing.T) {
	h := newHarness(t, audio.WithGestureRequired())
	ctx := context.Background()

	out := h.engine.Play(ctx, "r", 13, "128")
	if out.Status != AwaitingUserGesture {
		t.Fatalf("status = %v, want awaiting user gesture", out.Status)
	}
	if got := h.hits.Load(); got != 1 {
		t.Fatalf("requests before gesture = %d, want 1", got)
	}

	if _, err := out.Gesture.Resume(ctx); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	h.engine.Wait()

	// One stream request plus the background fill
	if got := h.hits.Load(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestPlay_DeviceFailure(t *testing.T) {
	h := newHarness(t)
	h.device.SetFailure(audio.ErrPlaybackFailed)

	out := h.engine.Play(context.Background(), "r", 5, "128")
	if out.Status != Failed || !errors.Is(out.Err, audio.ErrPlaybackFailed) {
		t.Fatalf("outcome = %v, want failed with ErrPlaybackFailed", out)
	}
}

func TestPlay_GestureStartsExactlyOnce(t *testing.T) {
	h := newHarness(t, audio.WithGestureRequired())
	ctx := context.Background()

	out := h.engine.Play(ctx, "r", 6, "128")
	if out.Status != AwaitingUserGesture {
		t.Fatalf("status = %v, want awaiting user gesture", out.Status)
	}
	if out.Gesture == nil || !out.Gesture.Armed() {
		t.Fatal("no armed gesture returned")
	}
	if h.device.StartCount() != 0 {
		t.Fatalf("device started %d times before gesture", h.device.StartCount())
	}

	resumed, fired := h.engine.Interact(ctx)
	if !fired {
		t.Fatal("interaction did not fire the gesture")
	}
	if resumed.Status != PlayingFromNetwork {
		t.Errorf("resumed status = %v, want playing from network", resumed.Status)
	}

	// A second interaction finds nothing armed
	if _, fired := h.engine.Interact(ctx); fired {
		t.Error("gesture fired twice")
	}
	if _, err := out.Gesture.Resume(ctx); !errors.Is(err, ErrGestureDisarmed) {
		t.Errorf("Resume after firing error = %v, want ErrGestureDisarmed", err)
	}
	if got := h.device.StartCount(); got != 1 {
		t.Errorf("device started %d times, want 1", got)
	}

	h.engine.Wait()
	if !h.store.Exists(ctx, out.Key) {
		t.Error("network playback after gesture did not cache the entry")
	}
}

func TestPlay_GestureDisarmsEvenWhenRetryFails(t *testing.T) {
	h := newHarness(t, audio.WithGestureRequired())
	ctx := context.Background()

	out := h.engine.Play(ctx, "r", 7, "128")
	if out.Status != AwaitingUserGesture {
		t.Fatalf("status = %v, want awaiting user gesture", out.Status)
	}

	h.device.SetFailure(audio.ErrPlaybackFailed)
	resumed, err := out.Gesture.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if resumed.Status != Failed {
		t.Errorf("resumed status = %v, want failed", resumed.Status)
	}
	if out.Gesture.Armed() {
		t.Error("gesture still armed after a failed retry")
	}
}

func TestPlay_RejectedCacheRetriesLastBoundSource(t *testing.T) {
	h := newHarness(t, audio.WithGestureRequired())
	ctx := context.Background()
	h.seed(t, "r", 8, "128")

	out := h.engine.Play(ctx, "r", 8, "128")
	if out.Status != AwaitingUserGesture {
		t.Fatalf("status = %v, want awaiting user gesture", out.Status)
	}
	// Both the cached and the network attempt were rejected
	if got := h.device.RejectCount(); got != 2 {
		t.Errorf("rejections = %d, want 2", got)
	}

	if _, fired := h.engine.Interact(ctx); !fired {
		t.Fatal("interaction did not fire")
	}
	started := h.device.Started()
	if len(started) != 1 || started[0].Origin != audio.OriginNetwork {
		t.Errorf("started = %+v, want one network start", started)
	}
}

func TestPlay_SecondRequestSupersedesGesture(t *testing.T) {
	h := newHarness(t, audio.WithGestureRequired())
	ctx := context.Background()

	first := h.engine.Play(ctx, "r", 9, "128")
	second := h.engine.Play(ctx, "r", 10, "128")
	if first.Status != AwaitingUserGesture || second.Status != AwaitingUserGesture {
		t.Fatalf("statuses = %v, %v, want both awaiting", first.Status, second.Status)
	}
	if first.Gesture.Armed() {
		t.Error("first gesture still armed after second play")
	}
	if _, err := first.Gesture.Resume(ctx); !errors.Is(err, ErrGestureDisarmed) {
		t.Errorf("first Resume error = %v, want ErrGestureDisarmed", err)
	}

	if _, fired := h.engine.Interact(ctx); !fired {
		t.Fatal("interaction did not fire")
	}
	started := h.device.Started()
	if len(started) != 1 {
		t.Fatalf("device started %d times, want 1", len(started))
	}
	if started[0].Key != second.Key {
		t.Errorf("started %q, want second request %q", started[0].Key, second.Key)
	}
	if _, fired := h.engine.Interact(ctx); fired {
		t.Error("an extra gesture fired")
	}
}

func TestEngine_StopDisarms(t *testing.T) {
	h := newHarness(t, audio.WithGestureRequired())
	ctx := context.Background()

	out := h.engine.Play(ctx, "r", 11, "128")
	if err := h.engine.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if out.Gesture.Armed() {
		t.Error("gesture armed after Stop")
	}
	if s := h.engine.Session(); s.Armed || s.Playing {
		t.Errorf("session after stop = %+v", s)
	}
}

func TestPlay_CanceledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := h.engine.Play(ctx, "r", 12, "128")
	if out.Status != Failed || !errors.Is(out.Err, context.Canceled) {
		t.Errorf("outcome = %v, want failed with context.Canceled", out)
	}
	if h.hits.Load() != 0 {
		t.Error("canceled play hit the network")
	}
}
