package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "viewkit",
		Short:        "map/reduce views over a document bucket",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), queryCmd(), initCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
