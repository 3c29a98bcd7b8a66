package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "booster",
		Short: "Booster sandboxed WASM execution service",
		Long:  "Run booster, a long-running service that executes untrusted WASM guest modules and brokers their access to Postgres and Redis",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
