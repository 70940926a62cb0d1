package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var inviteEntity uint

var inviteCmd = &cobra.Command{
	Use:   "invite <email>",
	Short: "Invite a device owner; the token is used once to enroll",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := client.Invite(cmd.Context(), args[0], inviteEntity)
		if err != nil {
			return fmt.Errorf("invite: %w", err)
		}
		return printer.Print(inv, []string{"ID", "ENTITY", "STATUS", "EXPIRES", "TOKEN"}, func(add func(...any)) {
			expires := "-"
			if inv.ExpirationDate != nil {
				expires = inv.ExpirationDate.Local().Format("2006-01-02 15:04")
			}
			add(inv.ID, inv.EntityID, inv.Status, expires, inv.Token)
		})
	},
}

var fleetsEntity uint

var fleetsCmd = &cobra.Command{
	Use:   "fleets",
	Short: "List the fleets of an entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		fleets, err := client.Fleets(cmd.Context(), fleetsEntity)
		if err != nil {
			return fmt.Errorf("list fleets: %w", err)
		}
		return printer.Print(fleets, []string{"ID", "NAME", "ENTITY", "DEFAULT", "TOPIC"}, func(add func(...any)) {
			for _, f := range fleets {
				add(f.ID, f.Name, f.EntityID, f.IsDefault, f.Topic)
			}
		})
	},
}

func init() {
	inviteCmd.Flags().UintVar(&inviteEntity, "entity", 0, "entity the device will belong to")
	fleetsCmd.Flags().UintVar(&fleetsEntity, "entity", 0, "entity id")
	rootCmd.AddCommand(inviteCmd, fleetsCmd)
}
