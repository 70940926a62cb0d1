package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"flyvemdm/cmd/flyvectl/api"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type errMsg error

type loggedInMsg struct{ client *api.Client }

type LoginModel struct {
	Inputs   []textinput.Model
	FocusIdx int
	Err      error
}

const (
	inputServer = iota
	inputUsername
	inputPassword
)

func NewLoginModel(server string) LoginModel {
	inputs := make([]textinput.Model, 3)

	inputs[inputServer] = textinput.New()
	inputs[inputServer].Prompt = "Server: "
	inputs[inputServer].Placeholder = "http://127.0.0.1:8080"
	inputs[inputServer].SetValue(server)
	inputs[inputServer].Focus()

	inputs[inputUsername] = textinput.New()
	inputs[inputUsername].Prompt = "Username: "
	inputs[inputUsername].Placeholder = "admin"

	inputs[inputPassword] = textinput.New()
	inputs[inputPassword].Prompt = "Password: "
	inputs[inputPassword].Placeholder = "password"
	inputs[inputPassword].EchoMode = textinput.EchoPassword

	return LoginModel{Inputs: inputs}
}

func (m LoginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m LoginModel) Update(msg tea.Msg) (LoginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case errMsg:
		m.Err = msg
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			if m.FocusIdx == len(m.Inputs)-1 {
				m.Err = nil
				return m, m.loginCmd()
			}
			m.move(1)
		case tea.KeyTab, tea.KeyDown:
			m.move(1)
		case tea.KeyShiftTab, tea.KeyUp:
			m.move(-1)
		}
	}

	cmds := make([]tea.Cmd, len(m.Inputs))
	for i := range m.Inputs {
		m.Inputs[i], cmds[i] = m.Inputs[i].Update(msg)
	}
	return m, tea.Batch(cmds...)
}

func (m *LoginModel) move(delta int) {
	m.Inputs[m.FocusIdx].Blur()
	m.FocusIdx = (m.FocusIdx + delta + len(m.Inputs)) % len(m.Inputs)
	m.Inputs[m.FocusIdx].Focus()
}

func (m LoginModel) loginCmd() tea.Cmd {
	server := strings.TrimSpace(m.Inputs[inputServer].Value())
	username := m.Inputs[inputUsername].Value()
	password := m.Inputs[inputPassword].Value()
	return func() tea.Msg {
		if server == "" {
			return errMsg(fmt.Errorf("server is required"))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c := api.New(server, "")
		if _, err := c.Login(ctx, username, password); err != nil {
			return errMsg(fmt.Errorf("login failed: %w", err))
		}
		return loggedInMsg{client: c}
	}
}

func (m LoginModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Flyve MDM - Admin Login") + "\n\n")
	for i := range m.Inputs {
		b.WriteString(m.Inputs[i].View())
		if i < len(m.Inputs)-1 {
			b.WriteRune('\n')
		}
	}
	b.WriteString("\n\n")
	b.WriteString(blurredStyle.Render("Tab to change field, Enter to submit"))
	if m.Err != nil {
		b.WriteString("\n\n" + errorMessageStyle(m.Err.Error()))
	}
	return b.String()
}
