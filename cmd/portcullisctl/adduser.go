package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portcullis-proxy/portcullis/internal/authn"
	"github.com/portcullis-proxy/portcullis/internal/credstore"
)

var addUserCmd = &cobra.Command{
	Use:   "add-user <username> <password>",
	Short: "Create a new proxy user",
	Args:  cobra.ExactArgs(2),
	RunE:  runAddUser,
}

func init() {
	rootCmd.AddCommand(addUserCmd)
}

func runAddUser(cmd *cobra.Command, args []string) error {
	username, password := args[0], args[1]

	if authn.IsWeakPassword(password) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: password for %q is weak\n", username)
	}

	store, err := credstore.Open(credDBPath)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer store.Close()

	stored, err := authn.NewStoredCredential(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := store.Insert(username, stored); err != nil {
		if errors.Is(err, credstore.ErrDuplicateUser) {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: user %q already exists; store left unchanged\n", username)
			return nil
		}
		if errors.Is(err, credstore.ErrInvalidUsername) {
			return fmt.Errorf("username must not be empty")
		}
		return fmt.Errorf("insert user: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created user %q\n", username)
	return nil
}
