package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "idmerge",
	Short: "Classify and merge two-sided identity-document scans",
	Long: "idmerge takes folders of scanned identity-document photos, decides which\n" +
		"image is the front and which is the back of each document, extracts the\n" +
		"printed fields, and produces one merged artifact per folder plus a batch\n" +
		"summary.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(recognizeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
