// Command portcullisctl administers a portcullis credential store: adding
// users and listing who can currently authenticate to the proxy.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var credDBPath string

var rootCmd = &cobra.Command{
	Use:   "portcullisctl",
	Short: "Administer a portcullis credential store",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&credDBPath, "db", "/var/lib/portcullis/users.db", "path to the credential store database")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
