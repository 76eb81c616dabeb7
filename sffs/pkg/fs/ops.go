package fs

import (
	"strings"

	"github.com/deploymenttheory/go-sffs/sffs/pkg/result"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/types"
)

// createEntry creates a file or directory entry and prepends it to the
// parent's child list, so directory listings are newest first.
func (f *fileSystem) createEntry(h *handle, path string, attribute types.FileAttribute,
	ownerMode, groupMode, otherMode types.FileMode, isFile bool) error {
	if !isValidNonRootPath(path) || !hasValidPathCharacters(path) {
		return result.Invalid
	}

	if !isFile && strings.Count(path, "/") > 8 {
		return result.TooManyPathComponents
	}

	superblock := f.getSuperblock()
	if superblock == nil {
		return result.SuperblockInitFailed
	}

	parentPath, fileName := splitPath(path)
	parentIndex, err := f.fstIndex(superblock, parentPath)
	if err != nil {
		return result.NotFound
	}

	parent := &superblock.Fst[parentIndex]
	if !hasPermission(parent, h.uid, h.gid, types.ModeWrite) {
		return result.AccessDenied
	}

	if _, err := f.fstChildIndex(superblock, parentIndex, fileName); err == nil {
		return result.AlreadyExists
	}

	childIndex, err := f.unusedFstIndex(superblock)
	if err != nil {
		return err
	}

	child := &superblock.Fst[childIndex]
	child.SetFileName(fileName)
	if isFile {
		child.Mode = 1
		child.Sub = types.ClusterLastInChain
	} else {
		child.Mode = 2
		child.Sub = types.InvalidFstIndex
	}
	child.SetAccessMode(ownerMode, groupMode, otherMode)
	child.UID = h.uid
	child.GID = h.gid
	child.Size = 0
	child.X3 = 0
	child.Attr = attribute
	child.Sib = parent.Sub
	parent.Sub = childIndex
	return f.flushSuperblock()
}

func (f *fileSystem) CreateFile(fd Fd, path string, attribute types.FileAttribute,
	ownerMode, groupMode, otherMode types.FileMode) error {
	h := f.handleFromFd(fd)
	if h == nil {
		return result.Invalid
	}
	return f.createEntry(h, path, attribute, ownerMode, groupMode, otherMode, true)
}

func (f *fileSystem) CreateDirectory(fd Fd, path string, attribute types.FileAttribute,
	ownerMode, groupMode, otherMode types.FileMode) error {
	h := f.handleFromFd(fd)
	if h == nil {
		return result.Invalid
	}
	return f.createEntry(h, path, attribute, ownerMode, groupMode, otherMode, false)
}

// deleteFile frees all clusters of a file and releases its FST entry.
// A valid file FST index must be passed.
func (f *fileSystem) deleteFile(superblock *types.Superblock, file uint16) {
	for i := superblock.Fst[file].Sub; uint32(i) < types.TotalClusters; {
		f.log.Debugf("deleteFile: freeing cluster %#04x", i)
		next := superblock.Fat[i]
		superblock.Fat[i] = types.ClusterUnused
		i = next
	}

	superblock.Fst[file].Mode = 0
}

// deleteDirectoryContents recursively deletes all files in a directory
// without flushing the superblock. A valid directory FST index must be
// passed and contained files must all be closed.
func (f *fileSystem) deleteDirectoryContents(superblock *types.Superblock, directory uint16) {
	for child := superblock.Fst[directory].Sub; child < types.FstEntryCount; child = superblock.Fst[child].Sib {
		if superblock.Fst[child].IsDirectory() {
			f.deleteDirectoryContents(superblock, child)
		} else {
			f.deleteFile(superblock, child)
		}
	}
}

// removeFstEntryFromChain unlinks an entry from its parent's child list,
// handling both the head and interior positions, and releases the entry.
func removeFstEntryFromChain(superblock *types.Superblock, parent, child uint16) error {
	if superblock.Fst[parent].Sub == child {
		superblock.Fst[parent].Sub = superblock.Fst[child].Sib
		superblock.Fst[child].Mode = 0
		return nil
	}

	previous := superblock.Fst[parent].Sub
	index := superblock.Fst[previous].Sib
	for index < types.FstEntryCount {
		if index == child {
			superblock.Fst[previous].Sib = superblock.Fst[child].Sib
			superblock.Fst[child].Mode = 0
			return nil
		}
		previous = index
		index = superblock.Fst[index].Sib
	}

	return result.NotFound
}

func (f *fileSystem) Delete(fd Fd, path string) error {
	h := f.handleFromFd(fd)
	if h == nil || !isValidNonRootPath(path) {
		return result.Invalid
	}

	superblock := f.getSuperblock()
	if superblock == nil {
		return result.SuperblockInitFailed
	}

	parentPath, fileName := splitPath(path)
	parentIndex, err := f.fstIndex(superblock, parentPath)
	if err != nil {
		return result.NotFound
	}

	if !hasPermission(&superblock.Fst[parentIndex], h.uid, h.gid, types.ModeWrite) {
		return result.AccessDenied
	}

	index, err := f.fstChildIndex(superblock, parentIndex, fileName)
	if err != nil {
		return result.NotFound
	}

	entry := &superblock.Fst[index]
	switch {
	case entry.IsDirectory() && !f.isDirectoryInUse(superblock, index):
		f.deleteDirectoryContents(superblock, index)
	case entry.IsFile() && !f.isFileOpened(index):
		f.deleteFile(superblock, index)
	default:
		return result.InUse
	}

	if err := removeFstEntryFromChain(superblock, parentIndex, index); err != nil {
		return err
	}

	return f.flushSuperblock()
}

func (f *fileSystem) Rename(fd Fd, oldPath, newPath string) error {
	h := f.handleFromFd(fd)
	if h == nil || !isValidNonRootPath(oldPath) || !isValidNonRootPath(newPath) {
		return result.Invalid
	}

	superblock := f.getSuperblock()
	if superblock == nil {
		return result.SuperblockInitFailed
	}

	oldParentPath, oldName := splitPath(oldPath)
	newParentPath, newName := splitPath(newPath)

	oldParent, errOld := f.fstIndex(superblock, oldParentPath)
	newParent, errNew := f.fstIndex(superblock, newParentPath)
	if errOld != nil || errNew != nil {
		return result.NotFound
	}

	if !hasPermission(&superblock.Fst[oldParent], h.uid, h.gid, types.ModeWrite) ||
		!hasPermission(&superblock.Fst[newParent], h.uid, h.gid, types.ModeWrite) {
		return result.AccessDenied
	}

	index, err := f.fstChildIndex(superblock, oldParent, oldName)
	if err != nil {
		return result.NotFound
	}

	entry := &superblock.Fst[index]
	if entry.IsFile() && truncateName(oldName) == truncateName(newName) {
		return result.Invalid
	}

	if (entry.IsDirectory() && f.isDirectoryInUse(superblock, index)) ||
		(entry.IsFile() && f.isFileOpened(index)) {
		return result.InUse
	}

	// If there is already something of the same kind at the new path,
	// delete it.
	if newIndex, err := f.fstChildIndex(superblock, newParent, newName); err == nil {
		if superblock.Fst[newIndex].Mode&3 != entry.Mode&3 || newIndex == index {
			return result.Invalid
		}

		switch {
		case superblock.Fst[newIndex].IsDirectory() && !f.isDirectoryInUse(superblock, newIndex):
			f.deleteDirectoryContents(superblock, newIndex)
		case superblock.Fst[newIndex].IsFile() && !f.isFileOpened(newIndex):
			f.deleteFile(superblock, newIndex)
		default:
			return result.InUse
		}

		if err := removeFstEntryFromChain(superblock, newParent, newIndex); err != nil {
			return err
		}
	}

	savedMode := entry.Mode
	if err := removeFstEntryFromChain(superblock, oldParent, index); err != nil {
		return err
	}

	entry.Mode = savedMode
	entry.SetFileName(newName)
	entry.Sib = superblock.Fst[newParent].Sub
	superblock.Fst[newParent].Sub = index

	return f.flushSuperblock()
}

// truncateName limits a path component to the 12 bytes an FST entry stores.
func truncateName(name string) string {
	if len(name) > 12 {
		return name[:12]
	}
	return name
}

func (f *fileSystem) ReadDirectory(fd Fd, path string) ([]string, error) {
	h := f.handleFromFd(fd)
	if h == nil || path == "" || len(path) > 64 || path[0] != '/' {
		return nil, result.Invalid
	}

	superblock := f.getSuperblock()
	if superblock == nil {
		return nil, result.SuperblockInitFailed
	}

	index, err := f.fstIndex(superblock, path)
	if err != nil {
		return nil, result.NotFound
	}

	if !hasPermission(&superblock.Fst[index], h.uid, h.gid, types.ModeRead) {
		return nil, result.AccessDenied
	}

	if !superblock.Fst[index].IsDirectory() {
		return nil, result.Invalid
	}

	var children []string
	for i := superblock.Fst[index].Sub; i != types.InvalidFstIndex && i < types.FstEntryCount; i = superblock.Fst[i].Sib {
		children = append(children, superblock.Fst[i].FileName())
	}
	return children, nil
}

func (f *fileSystem) GetMetadata(fd Fd, path string) (Metadata, error) {
	h := f.handleFromFd(fd)
	if h == nil || path == "" {
		return Metadata{}, result.Invalid
	}

	superblock := f.getSuperblock()
	if superblock == nil {
		return Metadata{}, result.SuperblockInitFailed
	}

	var index uint16
	switch {
	case path == "/":
		// The root is always accessible.
		index = 0
	case isValidNonRootPath(path):
		parentPath, fileName := splitPath(path)

		parent, err := f.fstIndex(superblock, parentPath)
		if err != nil {
			return Metadata{}, result.NotFound
		}

		if !hasPermission(&superblock.Fst[parent], h.uid, h.gid, types.ModeRead) {
			return Metadata{}, result.AccessDenied
		}

		child, err := f.fstChildIndex(superblock, parent, fileName)
		if err != nil {
			return Metadata{}, result.NotFound
		}
		index = child
	default:
		return Metadata{}, result.Invalid
	}

	entry := &superblock.Fst[index]
	return Metadata{
		UID:       entry.UID,
		GID:       entry.GID,
		Attribute: entry.Attr,
		OwnerMode: entry.OwnerMode(),
		GroupMode: entry.GroupMode(),
		OtherMode: entry.OtherMode(),
		IsFile:    entry.IsFile(),
		Size:      entry.Size,
		FstIndex:  index,
	}, nil
}

func (f *fileSystem) SetMetadata(fd Fd, path string, uid types.Uid, gid types.Gid,
	attribute types.FileAttribute, ownerMode, groupMode, otherMode types.FileMode) error {
	h := f.handleFromFd(fd)
	if h == nil || path == "" || len(path) > 64 || path[0] != '/' {
		return result.Invalid
	}

	superblock := f.getSuperblock()
	if superblock == nil {
		return result.SuperblockInitFailed
	}

	index, err := f.fstIndex(superblock, path)
	if err != nil {
		return result.NotFound
	}

	entry := &superblock.Fst[index]

	// Only the owner (or root) may change metadata, and owners may not give
	// away ownership.
	if h.uid != 0 && h.uid != entry.UID {
		return result.AccessDenied
	}
	if h.uid != 0 && entry.UID != uid {
		return result.AccessDenied
	}

	if entry.IsFile() && entry.Size != 0 {
		return result.FileNotEmpty
	}

	entry.GID = gid
	entry.UID = uid
	entry.Attr = attribute
	entry.SetAccessMode(ownerMode, groupMode, otherMode)

	return f.flushSuperblock()
}

func (f *fileSystem) GetNandStats(fd Fd) (NandStats, error) {
	if f.handleFromFd(fd) == nil {
		return NandStats{}, result.Invalid
	}

	superblock := f.getSuperblock()
	if superblock == nil {
		return NandStats{}, result.SuperblockInitFailed
	}

	stats := NandStats{ClusterSize: types.ClusterDataSize}
	for _, cluster := range superblock.Fat {
		switch cluster {
		case types.ClusterUnused, 0xffff:
			stats.FreeClusters++
		case types.ClusterReserved:
			stats.ReservedClusters++
		case types.ClusterBadBlock:
			stats.BadClusters++
		default:
			stats.UsedClusters++
		}
	}

	for i := range superblock.Fst {
		if superblock.Fst[i].Mode&3 != 0 {
			stats.UsedInodes++
		} else {
			stats.FreeInodes++
		}
	}

	return stats, nil
}

func countDirectory(superblock *types.Superblock, directory uint16) DirectoryStats {
	// One inode for the directory itself.
	stats := DirectoryStats{UsedInodes: 1}

	for child := superblock.Fst[directory].Sub; child < types.FstEntryCount; child = superblock.Fst[child].Sib {
		if superblock.Fst[child].IsFile() {
			stats.UsedClusters += (superblock.Fst[child].Size + types.ClusterDataSize - 1) / types.ClusterDataSize
			stats.UsedInodes++
		} else {
			sub := countDirectory(superblock, child)
			stats.UsedClusters += sub.UsedClusters
			stats.UsedInodes += sub.UsedInodes
		}
	}
	return stats
}

func (f *fileSystem) GetDirectoryStats(fd Fd, path string) (DirectoryStats, error) {
	if f.handleFromFd(fd) == nil {
		return DirectoryStats{}, result.Invalid
	}

	superblock := f.getSuperblock()
	// The error code for a malformed path is historical and kept for
	// compatibility.
	if superblock == nil || path == "" || path[0] != '/' || len(path) > 64 {
		return DirectoryStats{}, result.SuperblockInitFailed
	}

	index, err := f.fstIndex(superblock, path)
	if err != nil {
		return DirectoryStats{}, result.NotFound
	}

	if !superblock.Fst[index].IsDirectory() {
		return DirectoryStats{}, result.Invalid
	}

	return countDirectory(superblock, index), nil
}
