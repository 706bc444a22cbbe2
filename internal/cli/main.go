package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func Main() {
	root := &cobra.Command{
		Use:          "clipforge <input>",
		Short:        "Turn a long video into AI-selected short clips",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.Flags().String("out", "out", "Output directory")
	root.Flags().Int("clips", 5, "Number of clips to select")
	root.Flags().String("directives", "", "Free-text instructions that override the default selection heuristics")
	root.Flags().Bool("upload", false, "Upload the source video after analysis")
	root.Flags().String("title", "", "Title for the uploaded video (defaults to the file name)")
	root.Flags().String("env-file", "", "Path to a .env file (defaults to ./.env)")
	root.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	root.Flags().String("cache-dir", "", "Cache directory for intermediate artifacts")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
