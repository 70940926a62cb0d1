package commands

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"flyvemdm/backend/app/dto"
	"flyvemdm/cmd/flyvectl/output"

	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:     "agents",
	Aliases: []string{"agent"},
	Short:   "List, query and command enrolled agents",
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid agent id %q", s)
	}
	return uint(id), nil
}

func printAgents(agents []dto.AgentResponse, v any) error {
	return printer.Print(v, []string{"ID", "NAME", "SERIAL", "FLEET", "STATUS", "ONLINE", "WIPE", "LOCK"}, func(add func(...any)) {
		for _, a := range agents {
			add(a.ID, a.Name, a.Serial, a.FleetID, a.EnrollStatus, a.IsOnline, a.Wipe, a.Lock)
		}
	})
}

// printUpdated prints the agent and, on stderr, the delivery warning if any.
func printUpdated(cmd *cobra.Command, a *dto.AgentResponse) error {
	if a.Warning != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: saved, but not every command was delivered:", a.Warning)
	}
	return printAgents([]dto.AgentResponse{*a}, a)
}

func confirm(cmd *cobra.Command, prompt string) bool {
	if yesFlag {
		return true
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Scan()
	return strings.ToLower(strings.TrimSpace(scanner.Text())) == "y"
}

// agentCmd builds a subcommand taking a single agent id.
func agentCmd(use, short string, run func(ctx context.Context, cmd *cobra.Command, id uint) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <agent-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd, id)
		},
	}
}

// updateCmd builds a subcommand that changes the agent through a partial update.
func updateCmd(use, short, prompt string, in func() dto.AgentUpdateRequest) *cobra.Command {
	return agentCmd(use, short, func(ctx context.Context, cmd *cobra.Command, id uint) error {
		if prompt != "" && !confirm(cmd, fmt.Sprintf(prompt, id)) {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
		a, err := client.UpdateAgent(ctx, id, in())
		if err != nil {
			return fmt.Errorf("%s agent %d: %w", use, id, err)
		}
		return printUpdated(cmd, a)
	})
}

func boolp(b bool) *bool { return &b }

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		agents, err := client.Agents(cmd.Context())
		if err != nil {
			return fmt.Errorf("list agents: %w", err)
		}
		return printAgents(agents, agents)
	},
}

var agentsMoveCmd = &cobra.Command{
	Use:   "move <agent-id> <fleet-id>",
	Short: "Move an agent to another fleet of its entity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		fleet, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid fleet id %q", args[1])
		}
		fid := uint(fleet)
		a, err := client.UpdateAgent(cmd.Context(), id, dto.AgentUpdateRequest{FleetID: &fid})
		if err != nil {
			return fmt.Errorf("move agent %d: %w", id, err)
		}
		return printUpdated(cmd, a)
	},
}

var agentsRenameCmd = &cobra.Command{
	Use:   "rename <agent-id> <name>",
	Short: "Rename an agent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		name := args[1]
		a, err := client.UpdateAgent(cmd.Context(), id, dto.AgentUpdateRequest{Name: &name})
		if err != nil {
			return fmt.Errorf("rename agent %d: %w", id, err)
		}
		return printUpdated(cmd, a)
	},
}

func init() {
	get := agentCmd("get", "Show one agent", func(ctx context.Context, cmd *cobra.Command, id uint) error {
		a, err := client.Agent(ctx, id)
		if err != nil {
			return fmt.Errorf("get agent %d: %w", id, err)
		}
		return printAgents([]dto.AgentResponse{*a}, a)
	})
	ping := agentCmd("ping", "Ping an agent and wait for its answer", func(ctx context.Context, cmd *cobra.Command, id uint) error {
		if err := client.Ping(ctx, id); err != nil {
			return fmt.Errorf("ping agent %d: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Agent %d answered.\n", id)
		return nil
	})
	reboot := agentCmd("reboot", "Ask an agent to reboot its device", func(ctx context.Context, cmd *cobra.Command, id uint) error {
		if err := client.Reboot(ctx, id); err != nil {
			return fmt.Errorf("reboot agent %d: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Agent %d acknowledged the reboot.\n", id)
		return nil
	})
	geolocate := agentCmd("geolocate", "Request a fresh position from an agent", func(ctx context.Context, cmd *cobra.Command, id uint) error {
		g, err := client.Geolocate(ctx, id)
		if err != nil {
			return fmt.Errorf("geolocate agent %d: %w", id, err)
		}
		return printer.Print(g, []string{"LATITUDE", "LONGITUDE", "ACCURACY", "DATE"}, func(add func(...any)) {
			add(g.Latitude, g.Longitude, g.Accuracy, g.Date.Local().Format("2006-01-02 15:04:05"))
		})
	})
	inventory := agentCmd("inventory", "Request a fresh inventory and print it", func(ctx context.Context, cmd *cobra.Command, id uint) error {
		inv, err := client.Inventory(ctx, id)
		if err != nil {
			return fmt.Errorf("inventory of agent %d: %w", id, err)
		}
		if printer.Format != output.Table {
			return printer.Print(inv, nil, nil)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), inv.Inventory)
		return err
	})
	remove := agentCmd("delete", "Delete an agent and its broker account", func(ctx context.Context, cmd *cobra.Command, id uint) error {
		if !confirm(cmd, fmt.Sprintf("Delete agent %d?", id)) {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
		if err := client.DeleteAgent(ctx, id); err != nil {
			return fmt.Errorf("delete agent %d: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Agent %d deleted.\n", id)
		return nil
	})

	agentsCmd.AddCommand(
		agentsListCmd, get, ping, reboot, geolocate, inventory,
		updateCmd("lock", "Lock the device", "", func() dto.AgentUpdateRequest {
			return dto.AgentUpdateRequest{Lock: boolp(true)}
		}),
		updateCmd("unlock", "Unlock the device", "", func() dto.AgentUpdateRequest {
			return dto.AgentUpdateRequest{Lock: boolp(false)}
		}),
		updateCmd("wipe", "Factory reset the device", "Wipe agent %d? This erases the device.", func() dto.AgentUpdateRequest {
			return dto.AgentUpdateRequest{Wipe: boolp(true)}
		}),
		updateCmd("unenroll", "Ask the agent to unenroll", "Unenroll agent %d?", func() dto.AgentUpdateRequest {
			return dto.AgentUpdateRequest{Unenroll: true}
		}),
		agentsMoveCmd, agentsRenameCmd, remove,
	)
	rootCmd.AddCommand(agentsCmd)
}
