package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"qrstudio/internal/engine/render"
	"qrstudio/internal/engine/studio"
)

var previewCmd = &cobra.Command{
	Use:   "preview [text]",
	Short: "Print a QR code to the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		content := studio.ContentFromInputs(strings.Join(args, " "), "")
		fmt.Fprintf(cmd.OutOrStdout(), "Mode: %s\n", studio.Classify(content))
		render.Terminal(cmd.OutOrStdout(), content)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
}
