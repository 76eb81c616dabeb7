package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global output flags only
	verbose  bool
	nandPath string
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "go-sffs",
	Short: "Wii NAND (SFFS) filesystem explorer and editor",
	Long: `go-sffs is a cross-platform command-line tool for exploring and editing
Wii NAND images without a console.

Works directly with raw 0x21000000-byte NAND dumps, handling the AES-128-CBC
cluster encryption, per-cluster HMAC integrity tags, spare-area ECC and the
replicated superblock ring.

Commands:
  format      Initialise an empty file system
  ls          List the children of a directory
  stats       Show NAND or directory usage
  extract     Copy a file out of the NAND image
  put         Copy a host file into the NAND image
  mkdir       Create a directory
  rm          Delete a file or directory
  mv          Rename a file or directory`,
	Version: "0.1.0-dev",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = zap.NewNop()
		if verbose {
			development, err := zap.NewDevelopment()
			if err == nil {
				logger = development
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&nandPath, "nand", "", "path to the NAND image")

	rootCmd.AddCommand(
		formatCmd,
		lsCmd,
		statsCmd,
		extractCmd,
		putCmd,
		mkdirCmd,
		rmCmd,
		mvCmd,
	)
}
