package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portcullis-proxy/portcullis/internal/credstore"
)

var listUsersCmd = &cobra.Command{
	Use:     "list-users",
	Short:   "List every proxy user",
	Aliases: []string{"ls"},
	RunE:    runListUsers,
}

func init() {
	rootCmd.AddCommand(listUsersCmd)
}

func runListUsers(cmd *cobra.Command, args []string) error {
	store, err := credstore.Open(credDBPath)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer store.Close()

	usernames, err := store.List()
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if len(usernames) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no users")
		return nil
	}
	for _, u := range usernames {
		fmt.Fprintln(cmd.OutOrStdout(), u)
	}
	return nil
}
