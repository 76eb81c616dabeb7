package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-sffs/sffs/pkg/fs"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract <path> <output>",
	Short: "Copy a file out of the NAND image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, _, err := openFileSystem()
		if err != nil {
			return err
		}

		fd, err := driver.OpenFile(0, 0, args[0], types.ModeRead)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer driver.Close(fd)

		status, err := driver.GetFileStatus(fd)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", args[0], err)
		}

		data := make([]byte, status.Size)
		read, err := driver.ReadFile(fd, data)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		if err := os.WriteFile(args[1], data[:read], 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", args[1], err)
		}
		fmt.Printf("extracted %d bytes to %s\n", read, args[1])
		return nil
	},
}

var putAttr uint8

var putCmd = &cobra.Command{
	Use:   "put <input> <path>",
	Short: "Copy a host file into the NAND image as a new file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		driver, image, err := openFileSystem()
		if err != nil {
			return err
		}

		err = driver.CreateFile(fs.InternalFd, args[1], putAttr,
			types.ModeRead|types.ModeWrite, types.ModeRead, types.ModeRead)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", args[1], err)
		}

		fd, err := driver.OpenFile(0, 0, args[1], types.ModeWrite)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[1], err)
		}

		if _, err := driver.WriteFile(fd, data); err != nil {
			driver.Close(fd)
			return fmt.Errorf("failed to write %s: %w", args[1], err)
		}
		if err := driver.Close(fd); err != nil {
			return fmt.Errorf("failed to close %s: %w", args[1], err)
		}

		if err := saveImage(image); err != nil {
			return err
		}
		fmt.Printf("wrote %d bytes to %s\n", len(data), args[1])
		return nil
	},
}

func init() {
	putCmd.Flags().Uint8Var(&putAttr, "attr", 0, "file attribute byte")
}
