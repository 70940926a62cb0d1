package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"flyvemdm/backend/app/dto"
	"flyvemdm/cmd/flyvectl/api"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type BackToDashboardMsg struct{}

// actionDoneMsg carries the outcome of one request against the agent.
type actionDoneMsg struct {
	label string
	text  string
	agent *dto.AgentResponse
	err   error
}

type AgentDetailModel struct {
	Client *api.Client
	Agent  dto.AgentResponse
	Width  int
	Height int

	Log     viewport.Model
	lines   []string
	pending string
	// destructive keys must be pressed twice
	confirm string
}

func NewAgentDetailModel(c *api.Client, a dto.AgentResponse, width, height int) AgentDetailModel {
	vp := viewport.New(max(width-8, 20), max(height-16, 5))
	vp.Style = lipgloss.NewStyle().PaddingLeft(1)
	return AgentDetailModel{Client: c, Agent: a, Width: width, Height: height, Log: vp}
}

func (m AgentDetailModel) Init() tea.Cmd { return nil }

func (m AgentDetailModel) run(label string, f func(ctx context.Context) (string, *dto.AgentResponse, error)) (AgentDetailModel, tea.Cmd) {
	if m.pending != "" {
		return m, nil
	}
	m.pending = label
	m.appendLine("> " + label)
	return m, func() tea.Msg {
		// queries may wait up to ten seconds on the device
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		text, agent, err := f(ctx)
		return actionDoneMsg{label: label, text: text, agent: agent, err: err}
	}
}

func (m *AgentDetailModel) appendLine(s string) {
	m.lines = append(m.lines, s)
	m.Log.SetContent(strings.Join(m.lines, "\n"))
	m.Log.GotoBottom()
}

func (m AgentDetailModel) update(in dto.AgentUpdateRequest) func(ctx context.Context) (string, *dto.AgentResponse, error) {
	id := m.Agent.ID
	return func(ctx context.Context) (string, *dto.AgentResponse, error) {
		a, err := m.Client.UpdateAgent(ctx, id, in)
		if err != nil {
			return "", nil, err
		}
		return "saved", a, nil
	}
}

func (m AgentDetailModel) Update(msg tea.Msg) (AgentDetailModel, tea.Cmd) {
	id := m.Agent.ID
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.Log.Width = max(msg.Width-8, 20)
		m.Log.Height = max(msg.Height-16, 5)
		return m, nil

	case actionDoneMsg:
		m.pending = ""
		switch {
		case msg.err != nil:
			m.appendLine(errorMessageStyle(fmt.Sprintf("%s: %v", msg.label, msg.err)))
		default:
			if msg.agent != nil {
				m.Agent = *msg.agent
			}
			m.appendLine(fmt.Sprintf("%s: %s", msg.label, msg.text))
			if msg.agent != nil && msg.agent.Warning != "" {
				m.appendLine(warningStyle("warning: " + msg.agent.Warning))
			}
		}
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		if key == "w" || key == "u" {
			if m.confirm != key {
				m.confirm = key
				m.appendLine(warningStyle("press " + key + " again to confirm"))
				return m, nil
			}
		}
		m.confirm = ""
		switch key {
		case "esc":
			return m, func() tea.Msg { return BackToDashboardMsg{} }
		case "p":
			return m.run("ping", func(ctx context.Context) (string, *dto.AgentResponse, error) {
				return "answered", nil, m.Client.Ping(ctx, id)
			})
		case "b":
			return m.run("reboot", func(ctx context.Context) (string, *dto.AgentResponse, error) {
				return "acknowledged", nil, m.Client.Reboot(ctx, id)
			})
		case "g":
			return m.run("geolocate", func(ctx context.Context) (string, *dto.AgentResponse, error) {
				g, err := m.Client.Geolocate(ctx, id)
				if err != nil {
					return "", nil, err
				}
				return fmt.Sprintf("%s, %s at %s", g.Latitude, g.Longitude, g.Date.Local().Format(time.DateTime)), nil, nil
			})
		case "i":
			return m.run("inventory", func(ctx context.Context) (string, *dto.AgentResponse, error) {
				inv, err := m.Client.Inventory(ctx, id)
				if err != nil {
					return "", nil, err
				}
				return fmt.Sprintf("%d bytes, checksum %.12s", len(inv.Inventory), inv.Checksum), nil, nil
			})
		case "l":
			lock := !m.Agent.Lock
			label := "lock"
			if !lock {
				label = "unlock"
			}
			return m.run(label, m.update(dto.AgentUpdateRequest{Lock: &lock}))
		case "w":
			wipe := true
			return m.run("wipe", m.update(dto.AgentUpdateRequest{Wipe: &wipe}))
		case "u":
			return m.run("unenroll", m.update(dto.AgentUpdateRequest{Unenroll: true}))
		}
	}

	var cmd tea.Cmd
	m.Log, cmd = m.Log.Update(msg)
	return m, cmd
}

func (m AgentDetailModel) View() string {
	a := m.Agent
	contact := "never"
	if a.LastContact != nil {
		contact = a.LastContact.Local().Format(time.DateTime)
	}
	info := strings.Join([]string{
		fmt.Sprintf("Serial:   %s", a.Serial),
		fmt.Sprintf("Topic:    %s", a.Topic),
		fmt.Sprintf("Fleet:    %d", a.FleetID),
		fmt.Sprintf("Status:   %s", a.EnrollStatus),
		fmt.Sprintf("Online:   %t (last contact %s)", a.IsOnline, contact),
		fmt.Sprintf("Latches:  wipe=%t lock=%t", a.Wipe, a.Lock),
		fmt.Sprintf("Agent:    %s %s via %s", a.MdmType, a.Version, a.NotificationType),
	}, "\n")

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(max(m.Width-6, 40))

	title := titleStyle.Render(fmt.Sprintf("Agent %d - %s", a.ID, a.Name))
	status := ""
	if m.pending != "" {
		status = accentStyle.Render("waiting for " + m.pending + "...")
	}
	help := blurredStyle.Render("p: ping • b: reboot • g: geolocate • i: inventory • l: lock/unlock • w: wipe • u: unenroll • esc: back")
	return lipgloss.JoinVertical(lipgloss.Left, title, "", box.Render(info), box.Render(m.Log.View()), status, help)
}
