// Package tui holds the terminal views of the CLI: styled headers and the
// progress display for long collapse scans.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const barWidth = 48

type progressMsg struct{ done, total int }

type doneMsg struct{ err error }

type scanModel struct {
	title string
	bar   progress.Model
	spin  spinner.Model
	start time.Time

	done, total int
	finished    bool
	canceled    bool
	err         error
}

func newScanModel(title string) scanModel {
	return scanModel{
		title: title,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
		spin:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(cyan)),
		start: time.Now(),
	}
}

func (m scanModel) Init() tea.Cmd { return m.spin.Tick }

func (m scanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.canceled = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = min(barWidth, max(10, msg.Width-20))
	case progressMsg:
		m.done, m.total = msg.done, msg.total
	case doneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m scanModel) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

func (m scanModel) View() string {
	var b strings.Builder
	elapsed := time.Since(m.start).Round(100 * time.Millisecond)
	switch {
	case m.finished && m.err != nil:
		fmt.Fprintf(&b, "%s %s\n", red.Render("✗"), white.Render(m.title))
		fmt.Fprintf(&b, "  %s\n", red.Render(m.err.Error()))
		return b.String()
	case m.finished:
		fmt.Fprintf(&b, "%s %s %s\n", green.Render("✓"), white.Render(m.title), dim.Render(elapsed.String()))
		return b.String()
	}
	fmt.Fprintf(&b, "%s %s\n", m.spin.View(), white.Render(m.title))
	fmt.Fprintf(&b, "  %s\n", m.bar.ViewAs(m.percent()))
	fmt.Fprintf(&b, "  %s\n", dim.Render(fmt.Sprintf("%d/%d collapses  %s  q to cancel", m.done, m.total, elapsed)))
	return b.String()
}

// Work is a long computation that reports its progress through report.
type Work func(ctx context.Context, report func(done, total int)) error

// RunScan runs work in the background while rendering a progress bar. It
// returns work's error; quitting the view cancels work's context and waits
// for it to return.
func RunScan(ctx context.Context, title string, work Work, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newScanModel(title), opts...)
	errc := make(chan error, 1)
	go func() {
		err := work(ctx, func(done, total int) {
			p.Send(progressMsg{done: done, total: total})
		})
		errc <- err
		p.Send(doneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-errc
		return err
	}
	cancel()
	return <-errc
}
