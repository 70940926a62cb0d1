package commands

import (
	"flyvemdm/cmd/flyvectl/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Browse agents and send them commands in a terminal UI",
	Long: `Open an interactive view of the enrolled agents.

Without a saved token the dashboard starts with a login form.

Key bindings on an agent:
  p  ping        b  reboot      g  geolocate   i  inventory
  l  lock/unlock w  wipe        u  unenroll    esc back`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := tea.NewProgram(ui.NewRootModel(client), tea.WithAltScreen()).Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
