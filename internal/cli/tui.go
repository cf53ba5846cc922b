package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/mendel/pkg/solver"
)

const (
	tuiTick     = 50 * time.Millisecond
	tuiBarWidth = 40
	tuiRecent   = 6
)

var (
	barDoneStyle = lipgloss.NewStyle().Foreground(colorCyan)
	barTodoStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// solveJob is the part of a pipeline job the progress view polls.
type solveJob interface {
	Total() int
	Workers() int
	TryRecv() (solver.Result, bool)
	Done() <-chan struct{}
	Cancel()
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tuiTick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// ProgressModel is the bubbletea model that follows a running job. It polls
// the job on every tick and quits once all workers have exited.
type ProgressModel struct {
	Title     string
	Results   []solver.Result
	Cancelled bool

	job      solveJob
	started  time.Time
	finished bool
	counts   map[solver.State]int
}

// NewProgressModel creates a progress view for job.
func NewProgressModel(title string, job solveJob) ProgressModel {
	return ProgressModel{
		Title:   title,
		job:     job,
		started: time.Now(),
		counts:  make(map[solver.State]int),
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return tick()
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.job.Cancel()
			m.Cancelled = true
		}
	case tickMsg:
		m.drain()
		select {
		case <-m.job.Done():
			m.drain()
			m.finished = true
			return m, tea.Quit
		default:
		}
		return m, tick()
	}
	return m, nil
}

func (m *ProgressModel) drain() {
	for {
		r, ok := m.job.TryRecv()
		if !ok {
			return
		}
		m.Results = append(m.Results, r)
		m.counts[r.State]++
	}
}

func (m ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n\n")

	total := m.job.Total()
	done := len(m.Results)
	filled := 0
	if total > 0 {
		filled = done * tuiBarWidth / total
	}
	b.WriteString("  ")
	b.WriteString(barDoneStyle.Render(strings.Repeat("█", filled)))
	b.WriteString(barTodoStyle.Render(strings.Repeat("░", tuiBarWidth-filled)))
	b.WriteString(fmt.Sprintf(" %s/%d", StyleNumber.Render(fmt.Sprint(done)), total))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %d workers · %d converged · %d exhausted · %d degenerate · %s",
		m.job.Workers(),
		m.counts[solver.Converged], m.counts[solver.Exhausted], m.counts[solver.Degenerate],
		time.Since(m.started).Round(100*time.Millisecond))))
	b.WriteString("\n\n")

	for _, r := range m.Results[max(0, len(m.Results)-tuiRecent):] {
		line := fmt.Sprintf("  #%-4d %-10s fitness %6.1f after %d generations",
			r.Segment.Index, r.State, r.Fitness, r.Generations)
		if r.State == solver.Converged {
			b.WriteString(StyleSuccess.Render(line))
		} else {
			b.WriteString(StyleWarning.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.finished:
		b.WriteString(StyleDim.Render("  done"))
	case m.Cancelled:
		b.WriteString(StyleWarning.Render("  cancelling..."))
	default:
		b.WriteString(StyleDim.Render("  q cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

// runProgressTUI shows the progress view until job finishes and returns the
// results it received.
func runProgressTUI(ctx context.Context, title string, job solveJob) ([]solver.Result, error) {
	p := tea.NewProgram(NewProgressModel(title, job), tea.WithContext(ctx), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		job.Cancel()
		<-job.Done()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	m := final.(ProgressModel)
	if m.Cancelled {
		return m.Results, context.Canceled
	}
	return m.Results, nil
}
