package ui

import (
	"testing"

	"flyvemdm/backend/app/dto"
	"flyvemdm/cmd/flyvectl/api"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func TestRootStartsOnLoginWithoutToken(t *testing.T) {
	m := NewRootModel(api.New("http://127.0.0.1:8080", ""))
	require.Equal(t, stateLogin, m.State)
	require.Equal(t, "http://127.0.0.1:8080", m.Login.Inputs[inputServer].Value())

	next, cmd := m.Update(loggedInMsg{client: api.New("http://127.0.0.1:8080", "tok")})
	require.NotNil(t, cmd)
	require.Equal(t, stateDashboard, next.(RootModel).State)
}

func TestDashboardSelectsAgent(t *testing.T) {
	m := NewDashboardModel(api.New("http://x", "tok"), 24)
	m, _ = m.Update(agentsLoadedMsg{agents: []dto.AgentResponse{
		{ID: 4, Name: "pixel", Serial: "SN1", EnrollStatus: "enrolled", IsOnline: true},
		{ID: 9, Name: "ipad", Serial: "SN2", EnrollStatus: "unenrolling"},
	}})
	require.Len(t, m.Table.Rows(), 2)
	require.Equal(t, "yes", m.Table.Rows()[0][5])

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	sel, ok := cmd().(AgentSelectedMsg)
	require.True(t, ok)
	require.EqualValues(t, 4, sel.Agent.ID)
}

func TestDetailAsksBeforeWipe(t *testing.T) {
	m := NewAgentDetailModel(api.New("http://x", "tok"), dto.AgentResponse{ID: 4}, 100, 40)
	w := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("w")}

	m, cmd := m.Update(w)
	require.Nil(t, cmd)
	require.Empty(t, m.pending)

	m, cmd = m.Update(w)
	require.NotNil(t, cmd)
	require.Equal(t, "wipe", m.pending)

	// a second action is ignored while one is in flight
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	require.Nil(t, cmd)
}

func TestDetailShowsWarning(t *testing.T) {
	m := NewAgentDetailModel(api.New("http://x", "tok"), dto.AgentResponse{ID: 4}, 100, 40)
	m.pending = "lock"
	m, _ = m.Update(actionDoneMsg{label: "lock", text: "saved", agent: &dto.AgentResponse{ID: 4, Lock: true, Warning: "fcm: unavailable"}})
	require.True(t, m.Agent.Lock)
	require.Empty(t, m.pending)
	require.Contains(t, m.lines[len(m.lines)-1], "fcm: unavailable")
}
