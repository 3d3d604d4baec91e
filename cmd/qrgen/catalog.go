package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"qrstudio/internal/engine/studio"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the color templates",
	Run: func(cmd *cobra.Command, args []string) {
		for i, t := range studio.Templates() {
			fmt.Fprintf(cmd.OutOrStdout(), "%d  %-9s fg %s  bg %s\n", i, t.Name, t.Foreground, t.Background)
		}
	},
}

var sizesCmd = &cobra.Command{
	Use:   "sizes",
	Short: "List the allowed sizes",
	Run: func(cmd *cobra.Command, args []string) {
		for _, s := range studio.Sizes() {
			if s == studio.DefaultSize {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (default)\n", s)
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd, sizesCmd)
}
