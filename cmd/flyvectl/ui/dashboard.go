package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"flyvemdm/backend/app/dto"
	"flyvemdm/cmd/flyvectl/api"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

type DashboardModel struct {
	Client *api.Client
	Table  table.Model
	Agents []dto.AgentResponse
	Err    error
}

type agentsLoadedMsg struct {
	agents []dto.AgentResponse
	err    error
}

type AgentSelectedMsg struct{ Agent dto.AgentResponse }

func NewDashboardModel(c *api.Client, height int) DashboardModel {
	columns := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Name", Width: 20},
		{Title: "Serial", Width: 16},
		{Title: "Fleet", Width: 6},
		{Title: "Status", Width: 12},
		{Title: "Online", Width: 7},
		{Title: "Last contact", Width: 20},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(max(height-10, 5)),
	)
	t.SetStyles(tableStyles())
	return DashboardModel{Client: c, Table: t}
}

func (m DashboardModel) Init() tea.Cmd {
	return m.refresh
}

func (m DashboardModel) refresh() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	list, err := m.Client.Agents(ctx)
	return agentsLoadedMsg{agents: list, err: err}
}

func agentRow(a dto.AgentResponse) table.Row {
	online := "no"
	if a.IsOnline {
		online = "yes"
	}
	contact := "-"
	if a.LastContact != nil {
		contact = a.LastContact.Local().Format("2006-01-02 15:04:05")
	}
	return table.Row{fmt.Sprint(a.ID), a.Name, a.Serial, fmt.Sprint(a.FleetID), a.EnrollStatus, online, contact}
}

func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case agentsLoadedMsg:
		if msg.err != nil {
			m.Err = msg.err
			return m, nil
		}
		m.Err = nil
		m.Agents = msg.agents
		rows := make([]table.Row, 0, len(msg.agents))
		for _, a := range msg.agents {
			rows = append(rows, agentRow(a))
		}
		m.Table.SetRows(rows)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			return m, m.refresh
		case "enter":
			i := m.Table.Cursor()
			if i >= 0 && i < len(m.Agents) {
				a := m.Agents[i]
				return m, func() tea.Msg { return AgentSelectedMsg{Agent: a} }
			}
		case "q":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m DashboardModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Agents (%d)", len(m.Agents))) + "\n\n")
	b.WriteString(m.Table.View())
	b.WriteString("\n\n")
	b.WriteString(blurredStyle.Render("r: refresh • enter: details • q: quit"))
	if m.Err != nil {
		b.WriteString("\n" + errorMessageStyle(m.Err.Error()))
	}
	return b.String()
}
