// Package fs implements a read/write driver for the Wii NAND file system
// ("SFFS") over an in-memory image. It exposes a POSIX-like interface and
// transparently handles cluster encryption, per-cluster HMAC tags, spare-area
// ECC and the replicated, versioned superblock ring.
//
// The driver is single-threaded: invoking two operations concurrently on one
// instance is undefined behaviour.
package fs

import (
	"go.uber.org/zap"

	"github.com/deploymenttheory/go-sffs/sffs/pkg/crypto"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/nand"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/result"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/types"
)

// Fd is a file descriptor: a small integer in [0..15], or InternalFd.
type Fd = uint32

// InternalFd addresses a built-in root handle that does not occupy a slot in
// the descriptor table. It is always valid and acts as uid 0 / gid 0.
const InternalFd Fd = 0xffffff00

// SeekMode selects how SeekFile interprets its offset.
type SeekMode uint32

const (
	SeekSet SeekMode = iota
	SeekCurrent
	SeekEnd
)

// Metadata describes a file or directory.
type Metadata struct {
	UID       types.Uid
	GID       types.Gid
	Attribute types.FileAttribute
	OwnerMode types.FileMode
	GroupMode types.FileMode
	OtherMode types.FileMode
	IsFile    bool
	Size      uint32
	FstIndex  uint16
}

// NandStats reports cluster and inode usage for the whole device.
type NandStats struct {
	ClusterSize      uint32
	FreeClusters     uint32
	UsedClusters     uint32
	BadClusters      uint32
	ReservedClusters uint32
	FreeInodes       uint32
	UsedInodes       uint32
}

// DirectoryStats reports recursive cluster and inode usage for a directory.
type DirectoryStats struct {
	UsedClusters uint32
	UsedInodes   uint32
}

// FileStatus reports the current offset and size for an open file.
type FileStatus struct {
	// Offset is relative to the beginning of the file.
	Offset uint32
	Size   uint32
}

// FileSystem is the public driver interface.
type FileSystem interface {
	// Format initialises an empty file system. Only uid 0 may format.
	Format(uid types.Uid) error

	// OpenFs returns a file descriptor bound to no file, for using the
	// metadata operations.
	OpenFs(uid types.Uid, gid types.Gid) (Fd, error)
	// OpenFile returns a file descriptor for accessing an existing file.
	OpenFile(uid types.Uid, gid types.Gid, path string, mode types.FileMode) (Fd, error)
	// Close flushes and releases a file descriptor.
	Close(fd Fd) error

	// ReadFile reads up to len(p) bytes at the current offset.
	// It returns the number of bytes read.
	ReadFile(fd Fd, p []byte) (uint32, error)
	// WriteFile writes len(p) bytes at the current offset.
	// It returns the number of bytes written.
	WriteFile(fd Fd, p []byte) (uint32, error)
	// SeekFile repositions the file offset.
	SeekFile(fd Fd, offset uint32, mode SeekMode) (uint32, error)
	// GetFileStatus returns the current offset and size.
	GetFileStatus(fd Fd) (FileStatus, error)

	// CreateFile creates a file with the specified path and metadata.
	CreateFile(fd Fd, path string, attribute types.FileAttribute,
		ownerMode, groupMode, otherMode types.FileMode) error
	// CreateDirectory creates a directory with the specified path and metadata.
	CreateDirectory(fd Fd, path string, attribute types.FileAttribute,
		ownerMode, groupMode, otherMode types.FileMode) error

	// Delete removes a file or directory (recursively).
	Delete(fd Fd, path string) error
	// Rename moves a file or directory, replacing a same-kind target.
	Rename(fd Fd, oldPath, newPath string) error

	// ReadDirectory lists the children of a directory, newest first.
	ReadDirectory(fd Fd, path string) ([]string, error)

	// GetMetadata returns metadata about a file or directory.
	GetMetadata(fd Fd, path string) (Metadata, error)
	// SetMetadata updates ownership, attribute and access modes.
	SetMetadata(fd Fd, path string, uid types.Uid, gid types.Gid,
		attribute types.FileAttribute, ownerMode, groupMode, otherMode types.FileMode) error

	// GetNandStats returns usage information for the whole NAND.
	GetNandStats(fd Fd) (NandStats, error)
	// GetDirectoryStats returns recursive usage information for a directory.
	GetDirectoryStats(fd Fd, path string) (DirectoryStats, error)
}

type fileSystem struct {
	dev  *nand.Device
	keys crypto.KeyBundle
	log  *zap.SugaredLogger

	superblock      *types.Superblock
	superblockIndex uint32

	handles        [handleCount]handle
	internalHandle handle

	cacheHandle     *handle
	cacheChainIndex uint16
	cacheData       []byte
	cacheForWrite   bool
}

// Option configures a FileSystem at construction time.
type Option func(*fileSystem)

// WithLogger attaches a logger to the driver. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(f *fileSystem) {
		f.log = log.Sugar()
	}
}

// New creates a driver over a NAND image of at least types.NandSize bytes.
// The image and key material must stay valid and exclusively owned by the
// driver for its lifetime.
func New(image []byte, keys crypto.KeyBundle, opts ...Option) (FileSystem, error) {
	f := &fileSystem{
		keys: keys,
		log:  zap.NewNop().Sugar(),
		internalHandle: handle{
			opened:   true,
			fstIndex: types.InvalidFstIndex,
		},
	}
	for i := range f.handles {
		f.handles[i].fstIndex = types.InvalidFstIndex
	}
	for _, opt := range opts {
		opt(f)
	}

	dev, err := nand.New(image, keys.AES, f.log)
	if err != nil {
		return nil, err
	}
	f.dev = dev

	// Some images use 0xffff instead of the unused-cluster marker; rewrite
	// them in memory. This is not persisted until the next flush.
	if superblock := f.getSuperblock(); superblock != nil {
		for i, cluster := range superblock.Fat {
			if cluster == 0xffff {
				superblock.Fat[i] = types.ClusterUnused
			}
		}
	}

	return f, nil
}

// Format initialises the file system, marking the boot and superblock
// regions reserved and installing the root directory.
func (f *fileSystem) Format(uid types.Uid) error {
	if uid != 0 {
		return result.AccessDenied
	}

	if f.getSuperblock() == nil {
		f.superblock = new(types.Superblock)
	}

	f.superblock.Magic = types.SuperblockMagic

	for i := range f.superblock.Fat {
		// The boot1, boot2 and FS metadata regions are reserved.
		if i < 64 || i >= types.SuperblockStartCluster {
			f.superblock.Fat[i] = types.ClusterReserved
		} else {
			f.superblock.Fat[i] = types.ClusterUnused
		}
	}

	f.superblock.Fst = [types.FstEntryCount]types.FstEntry{}
	root := &f.superblock.Fst[0]
	root.SetFileName("/")
	root.Mode = 0x16
	root.Sub = types.InvalidFstIndex
	root.Sib = types.InvalidFstIndex

	for i := range f.handles {
		f.handles[i].opened = false
	}

	return f.flushSuperblock()
}
