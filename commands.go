package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ibnnafaa/nafaa/internal/locator"
	"github.com/ibnnafaa/nafaa/internal/playback"
	"github.com/ibnnafaa/nafaa/internal/reciters"
	"github.com/ibnnafaa/nafaa/internal/syncer"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// errNoGesture is returned when playback needs a key press but stdin is
// not a terminal.
var errNoGesture = errors.New("playback is waiting for a user gesture: run from a terminal or disable playback.require_gesture")

const defaultItem = "1"

var (
	playCmd = &cobra.Command{
		Use:   "play [ITEM]",
		Short: "Play a recitation, offline when cached",
		Long: paragraph(fmt.Sprintf("\n%s a recitation. Cached audio plays offline; anything else streams from the CDN and is cached in the background.",
			keyword("Play"))),
		Example:           paragraph("nafaa play 18\nnafaa play 1 --reciter alafasy --quality 64"),
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeItems,
		RunE:              runPlay,
	}

	downloadCmd = &cobra.Command{
		Use:               "download ITEM",
		Short:             "Cache one recitation for offline use",
		Example:           paragraph("nafaa download 36"),
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeItems,
		RunE:              runDownload,
	}

	downloadAllCmd = &cobra.Command{
		Use:   "download-all",
		Short: "Cache a reciter's whole catalog",
		Long: paragraph(fmt.Sprintf("\n%s every item for the selected reciter and quality, one at a time. Items already cached are skipped. Press ctrl+c to stop.",
			keyword("Download"))),
		Args: cobra.NoArgs,
		RunE: runDownloadAll,
	}

	clearCacheCmd = &cobra.Command{
		Use:   "clear-cache",
		Short: "Delete all cached recitations",
		Args:  cobra.NoArgs,
		RunE:  runClearCache,
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show cache usage",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	recitersCmd = &cobra.Command{
		Use:     "reciters [QUERY]",
		Short:   "List or search the configured reciters",
		Example: paragraph("nafaa reciters\nnafaa reciters ghamdi"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runReciters,
	}
)

// withApp opens the application for one command and closes it afterwards.
func withApp(fn func(ctx context.Context, app *App) error) error {
	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = fn(ctx, app)
	if cerr := app.Close(); cerr != nil {
		log.Warn("Shutdown incomplete", "err", cerr)
	}
	return err
}

func runPlay(cmd *cobra.Command, args []string) error {
	arg := defaultItem
	if len(args) > 0 {
		arg = args[0]
	}

	return withApp(func(ctx context.Context, app *App) error {
		item, err := app.target(arg)
		if err != nil {
			return err
		}
		reciter, err := app.resolve(cfg.Reciter)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()

		out, err := app.Play(ctx, reciter, item, cfg.Quality)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, playStatus(out, reciter, item))

		engine, err := app.player()
		if err != nil {
			return err
		}

		if out.Status == playback.AwaitingUserGesture {
			if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec
				return errNoGesture
			}
			if out, err = awaitGesture(ctx, engine, os.Stdin); err != nil {
				return err
			}
			fmt.Fprintln(w, playStatus(out, reciter, item))
		}

		if out.Status == playback.Failed {
			return out.Err
		}
		return waitForPlayback(ctx, engine, 200*time.Millisecond)
	})
}

// awaitGesture treats the next line read from r as the user interaction
// that resumes the armed gesture.
func awaitGesture(ctx context.Context, engine *playback.Engine, r io.Reader) (playback.Outcome, error) {
	line := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(r).ReadString('\n')
		line <- err
	}()

	select {
	case <-ctx.Done():
		_ = engine.Stop()
		return playback.Outcome{}, ctx.Err()
	case err := <-line:
		if err != nil && !errors.Is(err, io.EOF) {
			return playback.Outcome{}, fmt.Errorf("unable to read from terminal: %w", err)
		}
	}

	out, fired := engine.Interact(ctx)
	if !fired {
		return playback.Outcome{}, playback.ErrGestureDisarmed
	}
	return out, nil
}

// waitForPlayback blocks until the device stops or ctx is cancelled.
func waitForPlayback(ctx context.Context, engine *playback.Engine, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return engine.Stop()
		case <-ticker.C:
			if !engine.Session().Playing {
				return nil
			}
		}
	}
}

func runDownload(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, app *App) error {
		item, err := app.target(args[0])
		if err != nil {
			return err
		}
		reciter, err := app.resolve(cfg.Reciter)
		if err != nil {
			return err
		}

		res, err := app.Download(ctx, reciter, item, cfg.Quality)
		fmt.Fprintln(cmd.OutOrStdout(), downloadStatus(res, err, reciter, item))
		return err
	})
}

func runDownloadAll(cmd *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, app *App) error {
		reciter, err := app.resolve(cfg.Reciter)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()

		var report syncer.Report
		if term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec
			report, err = runSyncTUI(ctx, app, reciter, cfg.Quality)
		} else {
			report, err = app.DownloadAll(ctx, reciter, cfg.Quality, lineProgress(w))
		}
		fmt.Fprintln(w, syncStatus(report, err))
		return err
	})
}

// lineProgress prints a line every tenth of the catalog, for logs and pipes.
func lineProgress(w io.Writer) syncer.ProgressFunc {
	step := 0
	return func(completed, total int) {
		p := syncer.Progress{Completed: completed, Total: total}
		if s := int(p.Fraction() * 10); s > step || completed == total {
			step = s
			fmt.Fprintf(w, "%3.0f%% %d/%d\n", p.Fraction()*100, completed, total)
		}
	}
}

func runClearCache(cmd *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, app *App) error {
		if err := app.ClearCache(ctx); err != nil {
			return fmt.Errorf("unable to clear cache: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Cache cleared"))
		return nil
	})
}

func runStatus(cmd *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, app *App) error {
		stats, err := app.Status(ctx)
		if err != nil {
			return fmt.Errorf("unable to read cache statistics: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), statsStatus(stats, cfg.Cache.Dir))
		return nil
	})
}

func runReciters(cmd *cobra.Command, args []string) error {
	query := ""
	if len(args) > 0 {
		query = args[0]
	}

	w := cmd.OutOrStdout()
	matches := reciters.NewDirectory(cfg.Reciters).Find(query)
	if len(matches) == 0 {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("No reciter matches %q", query)))
		return nil
	}

	for _, m := range matches {
		marker := "  "
		if m.Key == cfg.Reciter {
			marker = keyword("• ")
		}
		fmt.Fprintf(w, "%s%-28s %s\n", marker, m.Key, dimStyle.Render(m.Name))
	}
	return nil
}

// itemCompletions lists catalog items starting with prefix.
func itemCompletions(loc locator.Locator, prefix string) []string {
	var out []string
	for _, id := range loc.Items() {
		s := fmt.Sprint(int(id))
		if strings.HasPrefix(s, prefix) {
			out = append(out, s)
		}
	}
	return out
}

func completeItems(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return itemCompletions(cfg.Locator(), toComplete), cobra.ShellCompDirectiveNoFileComp
}
