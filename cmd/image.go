package cmd

import (
	"fmt"
	"os"

	"github.com/deploymenttheory/go-sffs/sffs/pkg/fs"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/types"
)

// openImage loads the NAND image named by --nand into memory.
func openImage() ([]byte, error) {
	if nandPath == "" {
		return nil, fmt.Errorf("--nand is required")
	}
	image, err := os.ReadFile(nandPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read NAND image: %w", err)
	}
	if len(image) < types.NandSize {
		return nil, fmt.Errorf("NAND image must be at least %#x bytes, got %#x", types.NandSize, len(image))
	}
	return image, nil
}

// saveImage writes a mutated NAND image back to disk.
func saveImage(image []byte) error {
	if err := os.WriteFile(nandPath, image, 0o644); err != nil {
		return fmt.Errorf("failed to write NAND image: %w", err)
	}
	return nil
}

// openFileSystem builds a driver over the configured image and keys.
func openFileSystem() (fs.FileSystem, []byte, error) {
	config, err := LoadKeysConfig()
	if err != nil {
		return nil, nil, err
	}
	keys, err := loadKeyBundle(config)
	if err != nil {
		return nil, nil, err
	}
	image, err := openImage()
	if err != nil {
		return nil, nil, err
	}
	driver, err := fs.New(image, keys, fs.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return driver, image, nil
}
