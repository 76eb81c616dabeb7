package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-sffs/sffs/pkg/types"
)

var formatCreate bool

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Initialise an empty SFFS file system on a NAND image",
	RunE: func(cmd *cobra.Command, args []string) error {
		if formatCreate {
			if _, err := os.Stat(nandPath); os.IsNotExist(err) {
				if err := os.WriteFile(nandPath, make([]byte, types.NandSize), 0o644); err != nil {
					return fmt.Errorf("failed to create NAND image: %w", err)
				}
			}
		}

		driver, image, err := openFileSystem()
		if err != nil {
			return err
		}
		if err := driver.Format(0); err != nil {
			return fmt.Errorf("format failed: %w", err)
		}
		if err := saveImage(image); err != nil {
			return err
		}
		fmt.Println("formatted")
		return nil
	},
}

func init() {
	formatCmd.Flags().BoolVar(&formatCreate, "create", false, "create the image file if it does not exist")
}
