// Package ui is the terminal dashboard of flyvectl.
package ui

import (
	"flyvemdm/cmd/flyvectl/api"

	tea "github.com/charmbracelet/bubbletea"
)

type state int

const (
	stateLogin state = iota
	stateDashboard
	stateDetail
)

type RootModel struct {
	State     state
	Client    *api.Client
	Login     LoginModel
	Dashboard DashboardModel
	Detail    AgentDetailModel
	width     int
	height    int
}

// NewRootModel starts on the agent list when the client already holds a
// token, and on the login form otherwise.
func NewRootModel(c *api.Client) RootModel {
	m := RootModel{Client: c, Login: NewLoginModel(c.BaseURL)}
	if c.Token != "" {
		m.State = stateDashboard
		m.Dashboard = NewDashboardModel(c, 24)
	}
	return m
}

func (m RootModel) Init() tea.Cmd {
	if m.State == stateDashboard {
		return m.Dashboard.Init()
	}
	return m.Login.Init()
}

func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.State != stateLogin {
			m.Dashboard.Table.SetHeight(max(msg.Height-10, 5))
		}
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case loggedInMsg:
		m.Client = msg.client
		m.State = stateDashboard
		m.Dashboard = NewDashboardModel(m.Client, m.height)
		return m, m.Dashboard.Init()
	case AgentSelectedMsg:
		m.State = stateDetail
		m.Detail = NewAgentDetailModel(m.Client, msg.Agent, m.width, m.height)
		return m, m.Detail.Init()
	case BackToDashboardMsg:
		m.State = stateDashboard
		return m, m.Dashboard.Init()
	}

	var cmd tea.Cmd
	switch m.State {
	case stateLogin:
		m.Login, cmd = m.Login.Update(msg)
	case stateDashboard:
		m.Dashboard, cmd = m.Dashboard.Update(msg)
	case stateDetail:
		m.Detail, cmd = m.Detail.Update(msg)
	}
	return m, cmd
}

func (m RootModel) View() string {
	switch m.State {
	case stateDashboard:
		return m.Dashboard.View()
	case stateDetail:
		return m.Detail.View()
	}
	return m.Login.View()
}
