package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ibnnafaa/nafaa/internal/syncer"
)

const (
	barPadding  = 2
	barMaxWidth = 60
)

type (
	syncProgressMsg syncer.Progress
	syncDoneMsg     struct {
		report syncer.Report
		err    error
	}
)

// syncModel renders a bulk download as a progress bar.
type syncModel struct {
	bar      progress.Model
	title    string
	progress syncer.Progress
	cancel   context.CancelFunc

	canceling bool
	done      bool
	report    syncer.Report
	err       error
}

func newSyncModel(title string, total int, cancel context.CancelFunc) syncModel {
	return syncModel{
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(barMaxWidth)),
		title:    title,
		progress: syncer.Progress{Total: total},
		cancel:   cancel,
	}
}

func (m syncModel) Init() tea.Cmd {
	return nil
}

func (m syncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// The run stops at the next item boundary and reports back
			if !m.canceling {
				m.canceling = true
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - barPadding*2 - 12
		if m.bar.Width > barMaxWidth {
			m.bar.Width = barMaxWidth
		}
		if m.bar.Width < 10 {
			m.bar.Width = 10
		}
		return m, nil

	case syncProgressMsg:
		m.progress = syncer.Progress(msg)
		return m, nil

	case syncDoneMsg:
		m.done = true
		m.report = msg.report
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m syncModel) View() string {
	if m.done {
		return ""
	}

	pad := strings.Repeat(" ", barPadding)
	help := "ctrl+c to cancel"
	if m.canceling {
		help = "canceling after the current item…"
	}

	return "\n" +
		pad + m.title + "\n\n" +
		pad + m.bar.ViewAs(m.progress.Fraction()) +
		dimStyle.Render(fmt.Sprintf("  %d/%d", m.progress.Completed, m.progress.Total)) + "\n\n" +
		pad + dimStyle.Render(help) + "\n"
}

// runSyncTUI runs a bulk download behind a progress bar. It returns only
// after the download goroutine has finished.
func runSyncTUI(ctx context.Context, app *App, reciter, quality string, opts ...tea.ProgramOption) (syncer.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	title := fmt.Sprintf("Downloading %s at %s kbps", keyword(reciter), quality)
	p := tea.NewProgram(newSyncModel(title, len(app.locator.Items()), cancel), opts...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		report, err := app.DownloadAll(ctx, reciter, quality, func(completed, total int) {
			p.Send(syncProgressMsg{Completed: completed, Total: total})
		})
		p.Send(syncDoneMsg{report: report, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		<-done
		return syncer.Report{}, fmt.Errorf("unable to run progress display: %w", err)
	}
	<-done
	m := final.(syncModel)
	return m.report, m.err
}
