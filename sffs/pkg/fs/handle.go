package fs

import "github.com/deploymenttheory/go-sffs/sffs/pkg/types"

// handleCount is the number of public file descriptor slots.
const handleCount = 16

type handle struct {
	opened                bool
	fstIndex              uint16
	uid                   types.Uid
	gid                   types.Gid
	mode                  types.FileMode
	fileOffset            uint32
	fileSize              uint32
	superblockFlushNeeded bool
}

// assignFreeHandle claims the first unopened handle slot, or nil if all 16
// are taken.
func (f *fileSystem) assignFreeHandle(uid types.Uid, gid types.Gid) *handle {
	for i := range f.handles {
		if f.handles[i].opened {
			continue
		}
		f.handles[i] = handle{
			opened:   true,
			fstIndex: types.InvalidFstIndex,
			uid:      uid,
			gid:      gid,
		}
		return &f.handles[i]
	}
	return nil
}

// handleFromFd maps a descriptor to its handle, or nil if the descriptor is
// invalid. The internal descriptor always resolves.
func (f *fileSystem) handleFromFd(fd Fd) *handle {
	if fd == InternalFd {
		return &f.internalHandle
	}
	if fd >= handleCount || !f.handles[fd].opened {
		return nil
	}
	return &f.handles[fd]
}

func (f *fileSystem) fdFromHandle(h *handle) Fd {
	for i := range f.handles {
		if &f.handles[i] == h {
			return Fd(i)
		}
	}
	return InternalFd
}

// isFileOpened reports whether any public handle refers to the FST entry.
func (f *fileSystem) isFileOpened(fstIndex uint16) bool {
	for i := range f.handles {
		if f.handles[i].opened && f.handles[i].fstIndex == fstIndex {
			return true
		}
	}
	return false
}

// isDirectoryInUse recursively reports whether any file in the directory has
// been opened. A valid directory FST index must be passed.
func (f *fileSystem) isDirectoryInUse(superblock *types.Superblock, directory uint16) bool {
	for child := superblock.Fst[directory].Sub; child < types.FstEntryCount; child = superblock.Fst[child].Sib {
		if superblock.Fst[child].IsFile() {
			if f.isFileOpened(child) {
				return true
			}
		} else {
			if f.isDirectoryInUse(superblock, child) {
				return true
			}
		}
	}
	return false
}

// hasPermission checks a requested access mode against an entry's
// owner/group/other mode bits. uid 0 is always granted.
func hasPermission(entry *types.FstEntry, uid types.Uid, gid types.Gid, requested types.FileMode) bool {
	if uid == 0 {
		return true
	}

	var mode types.FileMode
	switch {
	case entry.UID == uid:
		mode = entry.OwnerMode()
	case entry.GID == gid:
		mode = entry.GroupMode()
	default:
		mode = entry.OtherMode()
	}
	return requested&mode == requested
}
