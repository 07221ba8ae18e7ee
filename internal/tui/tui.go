// Package tui provides a Bubble Tea terminal client for the audiocache server.
package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ashwake/audiocache/internal/model"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateWaiting
	StateComplete
	StateError
)

// trackStatus mirrors the server's /api/status payload.
type trackStatus struct {
	TrackID    string `json:"trackId"`
	Status     string `json:"status"`
	Available  bool   `json:"available"`
	Quality    string `json:"quality"`
	StreamPath string `json:"streamPath"`
	SizeBytes  int64  `json:"sizeBytes"`
}

// apiClient talks to a running audiocache server.
type apiClient struct {
	baseURL string
	client  *http.Client
}

func (c *apiClient) trigger(trackID string, quality model.Quality) error {
	body, err := json.Marshal(map[string]any{
		"trackId": trackID,
		"quality": quality,
	})
	if err != nil {
		return err
	}
	resp, err := c.client.Post(c.baseURL+"/api/download", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server answered %s", resp.Status)
	}
	return nil
}

func (c *apiClient) status(trackID string, quality model.Quality) (*trackStatus, error) {
	target := fmt.Sprintf("%s/api/status?id=%s&quality=%s",
		c.baseURL, url.QueryEscape(trackID), url.QueryEscape(quality.String()))
	resp, err := c.client.Get(target)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server answered %s", resp.Status)
	}
	var status trackStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	api       *apiClient

	quality model.Quality
	trackID string
	result  *trackStatus
	err     error

	width  int
	height int
}

// NewModel creates a new TUI model pointed at serverURL.
func NewModel(serverURL string) Model {
	ti := textinput.New()
	ti.Placeholder = "track id"
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		quality:   model.DefaultQuality,
		api: &apiClient{
			baseURL: strings.TrimRight(serverURL, "/"),
			client:  &http.Client{Timeout: 10 * time.Second},
		},
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// TriggerDoneMsg is sent when the download request was queued.
	TriggerDoneMsg struct {
		Err error
	}

	// StatusMsg carries one poll of the server's status endpoint.
	StatusMsg struct {
		Status *trackStatus
		Err    error
	}

	// PollMsg schedules the next status poll.
	PollMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}

		case "tab":
			if m.state == StateInput {
				m.quality = nextQuality(m.quality)
			}

		case "enter":
			if m.state == StateInput && m.textInput.Value() != "" {
				m.trackID = strings.TrimSpace(m.textInput.Value())
				m.state = StateWaiting
				return m, tea.Batch(m.triggerDownload(), m.spinner.Tick)
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m.state = StateInput
				m.result = nil
				m.err = nil
				m.textInput.SetValue("")
				m.textInput.Focus()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case TriggerDoneMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
		} else {
			cmds = append(cmds, m.pollStatus())
		}

	case StatusMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
		} else if msg.Status.Status == string(model.StatusCached) {
			m.state = StateComplete
			m.result = msg.Status
		} else {
			cmds = append(cmds, m.schedulePoll())
		}

	case PollMsg:
		if m.state == StateWaiting {
			cmds = append(cmds, m.pollStatus())
		}
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func nextQuality(q model.Quality) model.Quality {
	stored := model.StoredQualities()
	for i, candidate := range stored {
		if candidate == q {
			return stored[(i+1)%len(stored)]
		}
	}
	return model.DefaultQuality
}

// triggerDownload queues the download on the server.
func (m Model) triggerDownload() tea.Cmd {
	trackID, quality := m.trackID, m.quality
	return func() tea.Msg {
		return TriggerDoneMsg{Err: m.api.trigger(trackID, quality)}
	}
}

// pollStatus asks the server whether the track landed yet.
func (m Model) pollStatus() tea.Cmd {
	trackID, quality := m.trackID, m.quality
	return func() tea.Msg {
		status, err := m.api.status(trackID, quality)
		return StatusMsg{Status: status, Err: err}
	}
}

func (m Model) schedulePoll() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(_ time.Time) tea.Msg {
		return PollMsg{}
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("audiocache"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Cache tracks on your audiocache server"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateWaiting:
		b.WriteString(m.viewWaiting())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter track ID:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf("Quality: %s", m.quality)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Server: %s", m.api.baseURL)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewWaiting() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render(
		fmt.Sprintf("Caching track %s at %s...", m.trackID, m.quality)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewComplete() string {
	box := boxStyle.Render(fmt.Sprintf(
		"Track cached\n\n"+
			"Track:   %s\n"+
			"Quality: %s\n"+
			"Size:    %.2f MB",
		m.result.TrackID,
		m.result.Quality,
		float64(m.result.SizeBytes)/1024/1024,
	))
	return box
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: cache track | tab: quality | esc: quit"
	case StateWaiting:
		return "ctrl+c: quit"
	case StateComplete, StateError:
		return "r: another track | q: quit"
	}
	return ""
}

// Run starts the TUI application against the given server URL.
func Run(serverURL string) error {
	p := tea.NewProgram(NewModel(serverURL), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
