package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "flowbridge",
		Short: "Bridge between a Rocket.Chat workspace and a flow-automation service",
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the bridge HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
