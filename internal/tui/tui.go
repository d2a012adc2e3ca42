// Package tui implements the live "analyse --watch" terminal view: a
// periodically refreshed table of the currently hottest story clusters.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"newsradar/internal/core"
	"newsradar/internal/ranking"
)

// tickMsg fires on every poll interval, driving a re-run of the ranking job
// over the configured window.
type tickMsg time.Time

// resultMsg carries the outcome of one Run call back into the model.
type resultMsg struct {
	stories       []core.Story
	totalClusters int
	totalArticles int
	err           error
}

type model struct {
	job      *ranking.Job
	window   time.Duration
	topK     int
	interval time.Duration

	stories       []core.Story
	totalClusters int
	totalArticles int
	lastErr       error
	lastRun       time.Time
	quitting      bool
}

// Watch runs the live view until the user quits (q / ctrl+c). It blocks for
// the lifetime of the program.
func Watch(job *ranking.Job, window time.Duration, topK int, interval time.Duration) error {
	m := model{job: job, window: window, topK: topK, interval: interval}
	p := tea.NewProgram(m)
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.poll(), tickEvery(m.interval))
}

func (m model) poll() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		stories, totalClusters, totalArticles, err := m.job.Run(ctx, m.window, m.topK, true)
		return resultMsg{stories: stories, totalClusters: totalClusters, totalArticles: totalArticles, err: err}
	}
}

func tickEvery(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.poll(), tickEvery(m.interval))
	case resultMsg:
		m.lastRun = time.Now()
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		m.lastErr = nil
		m.stories = msg.stories
		m.totalClusters = msg.totalClusters
		m.totalArticles = msg.totalArticles
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return "\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("105")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Padding(0, 1)

	hotStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("170"))

	normalStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	statusStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("71")).
		Italic(true)

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("newsradar — hot stories (window %s, top %d)", m.window, m.topK)))
	b.WriteString("\n\n")

	if m.lastErr != nil {
		b.WriteString(errorStyle.Render("error: " + m.lastErr.Error()))
		b.WriteString("\n\n")
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-6s %-40s %-8s %-24s", "SCORE", "HEADLINE", "SOURCES", "WHY NOW")))
	b.WriteString("\n")

	if len(m.stories) == 0 {
		b.WriteString(normalStyle.Render("no clusters found in this window"))
		b.WriteString("\n")
	}
	for _, s := range m.stories {
		headline := s.Headline
		if headline == "" {
			headline = fmt.Sprintf("(cluster %s, not enriched)", s.ClusterID)
		}
		row := fmt.Sprintf("%-6.2f %-40.40s %-8d %-24.24s", s.Hotness.Final, headline, len(s.Sources), s.WhyNow)
		if s.Hotness.Final >= 0.7 {
			b.WriteString(hotStyle.Render(row))
		} else {
			b.WriteString(normalStyle.Render(row))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(statusStyle.Render(fmt.Sprintf(
		"clusters=%d articles=%d last refresh=%s — press q to quit",
		m.totalClusters, m.totalArticles, m.lastRun.Format("15:04:05"),
	)))
	b.WriteString("\n")

	return b.String()
}
