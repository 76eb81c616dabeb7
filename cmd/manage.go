package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-sffs/sffs/pkg/fs"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/types"
)

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, image, err := openFileSystem()
		if err != nil {
			return err
		}
		err = driver.CreateDirectory(fs.InternalFd, args[0], 0,
			types.ModeRead|types.ModeWrite, types.ModeRead, types.ModeRead)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", args[0], err)
		}
		return saveImage(image)
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete a file or directory (recursively)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, image, err := openFileSystem()
		if err != nil {
			return err
		}
		if err := driver.Delete(fs.InternalFd, args[0]); err != nil {
			return fmt.Errorf("failed to delete %s: %w", args[0], err)
		}
		return saveImage(image)
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <old> <new>",
	Short: "Rename a file or directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, image, err := openFileSystem()
		if err != nil {
			return err
		}
		if err := driver.Rename(fs.InternalFd, args[0], args[1]); err != nil {
			return fmt.Errorf("failed to rename %s: %w", args[0], err)
		}
		return saveImage(image)
	},
}
