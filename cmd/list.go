package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-sffs/sffs/pkg/fs"
)

var lsCmd = &cobra.Command{
	Use:   "ls <path>",
	Short: "List the children of a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, _, err := openFileSystem()
		if err != nil {
			return err
		}

		children, err := driver.ReadDirectory(fs.InternalFd, args[0])
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", args[0], err)
		}

		for _, child := range children {
			path := args[0] + "/" + child
			if args[0] == "/" {
				path = "/" + child
			}
			metadata, err := driver.GetMetadata(fs.InternalFd, path)
			if err != nil {
				fmt.Println(child)
				continue
			}
			kind := "d"
			if metadata.IsFile {
				kind = "f"
			}
			fmt.Printf("%s %5d:%-5d %10d  %s\n", kind, metadata.UID, metadata.GID, metadata.Size, child)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats [path]",
	Short: "Show NAND usage, or recursive usage of a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, _, err := openFileSystem()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			stats, err := driver.GetDirectoryStats(fs.InternalFd, args[0])
			if err != nil {
				return fmt.Errorf("failed to stat %s: %w", args[0], err)
			}
			fmt.Printf("used clusters: %d\nused inodes:   %d\n", stats.UsedClusters, stats.UsedInodes)
			return nil
		}

		stats, err := driver.GetNandStats(fs.InternalFd)
		if err != nil {
			return fmt.Errorf("failed to stat NAND: %w", err)
		}
		fmt.Printf("cluster size:      %#x\n", stats.ClusterSize)
		fmt.Printf("free clusters:     %d\n", stats.FreeClusters)
		fmt.Printf("used clusters:     %d\n", stats.UsedClusters)
		fmt.Printf("bad clusters:      %d\n", stats.BadClusters)
		fmt.Printf("reserved clusters: %d\n", stats.ReservedClusters)
		fmt.Printf("free inodes:       %d\n", stats.FreeInodes)
		fmt.Printf("used inodes:       %d\n", stats.UsedInodes)
		return nil
	},
}
