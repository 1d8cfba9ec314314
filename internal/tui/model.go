// Package tui is an interactive terminal explorer for nearest-neighbour queries.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/pkg/utils"
)

// Querier is the TUI-facing subset of the search engine.
type Querier interface {
	Similar(ctx context.Context, q *models.SimilarityQuery) (*models.SimilarityResponse, error)
	Suggest(words []string) map[string][]string
}

// Model is the Bubble Tea model for the explorer.
type Model struct {
	engine   Querier
	topN     int
	input    textinput.Model
	viewport viewport.Model
	resp     *models.SimilarityResponse
	summary  string
	status   string
	cursor   int
	ready    bool
	history  []string
}

// New creates a model. summary is shown under the title (vocabulary size, source).
func New(engine Querier, topN int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type one or more words and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	if topN < 1 {
		topN = models.DefaultTopN
	}
	return Model{
		engine:   engine,
		topN:     topN,
		input:    ti,
		viewport: viewport.New(0, 0),
		summary:  summary,
		status:   "Ready. Enter on an empty line explores the selected word; Esc goes back.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 + 1 // header, summary, status, input line, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderResults())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" && m.resp != nil && len(m.resp.Neighbors) > 0 {
				q = m.resp.Neighbors[m.cursor].Word
			}
			if q != "" {
				m = m.run(q)
				m.input.SetValue("")
			}
			return m, nil
		case "esc":
			if len(m.history) > 1 {
				m.history = m.history[:len(m.history)-1]
				prev := m.history[len(m.history)-1]
				m.history = m.history[:len(m.history)-1]
				m = m.run(prev)
			}
			return m, nil
		case "down":
			if m.resp != nil && len(m.resp.Neighbors) > 0 {
				m.cursor = (m.cursor + 1) % len(m.resp.Neighbors)
				m.viewport.SetContent(m.renderResults())
			}
			return m, nil
		case "up":
			if m.resp != nil && len(m.resp.Neighbors) > 0 {
				m.cursor = (m.cursor - 1 + len(m.resp.Neighbors)) % len(m.resp.Neighbors)
				m.viewport.SetContent(m.renderResults())
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) run(line string) Model {
	words := utils.SplitWords(line)
	resp, err := m.engine.Similar(context.Background(), &models.SimilarityQuery{Words: words, TopN: m.topN})
	if err != nil {
		m.status = m.describeError(err)
		return m
	}
	m.resp = resp
	m.cursor = 0
	m.history = append(m.history, strings.Join(resp.Query, " "))
	m.status = fmt.Sprintf("%d neighbours of %s in %dms", resp.Total, strings.Join(resp.Query, " + "), resp.QueryTime)
	m.viewport.SetContent(m.renderResults())
	m.viewport.GotoTop()
	return m
}

func (m Model) describeError(err error) string {
	var uw *embedding.UnknownWordError
	if !errors.As(err, &uw) {
		return "Error: " + err.Error()
	}
	sugg := m.engine.Suggest(uw.Words)
	parts := make([]string, 0, len(uw.Words))
	for _, w := range uw.Words {
		if s := sugg[w]; len(s) > 0 {
			parts = append(parts, fmt.Sprintf("%q (did you mean %s?)", w, strings.Join(s, ", ")))
		} else {
			parts = append(parts, fmt.Sprintf("%q", w))
		}
	}
	return "Unknown: " + strings.Join(parts, "; ")
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("ruiji - nearest words")
	summary := dimStyle.Render(m.summary)
	results := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderResults() string {
	if m.resp == nil || len(m.resp.Neighbors) == 0 {
		return "No results yet."
	}
	width := 4
	for _, n := range m.resp.Neighbors {
		width = max(width, len([]rune(n.Word)))
	}
	barWidth := max(10, m.viewport.Width-width-20)
	var sb strings.Builder
	for i, n := range m.resp.Neighbors {
		line := fmt.Sprintf("%3d  %-*s  %.4f  %s", n.Rank, width, n.Word, n.Score, scoreBar(n.Score, barWidth))
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		sb.WriteString(line)
		if i < len(m.resp.Neighbors)-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// scoreBar draws a cosine score in [-1, 1] as a bar of up to width cells; negative
// scores draw nothing.
func scoreBar(score float64, width int) string {
	n := int(score*float64(width) + 0.5)
	n = min(max(n, 0), width)
	return barStyle.Render(strings.Repeat("█", n))
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	barStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
