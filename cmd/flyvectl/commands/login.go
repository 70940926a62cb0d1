package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	loginUser     string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in as an administrator and save the token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginPassword == "" {
			loginPassword = v.GetString("password")
		}
		token, err := client.Login(cmd.Context(), loginUser, loginPassword)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		path, err := saveToken(token)
		if err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s, token saved to %s\n", loginUser, path)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "username", "u", "admin", "user name")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (or FLYVECTL_PASSWORD)")
	rootCmd.AddCommand(loginCmd)
}
