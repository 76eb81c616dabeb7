package fs

import (
	"github.com/deploymenttheory/go-sffs/sffs/pkg/result"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/types"
)

func (f *fileSystem) OpenFs(uid types.Uid, gid types.Gid) (Fd, error) {
	h := f.assignFreeHandle(uid, gid)
	if h == nil {
		return 0, result.NoFreeHandle
	}
	return f.fdFromHandle(h), nil
}

func (f *fileSystem) OpenFile(uid types.Uid, gid types.Gid, path string, mode types.FileMode) (Fd, error) {
	if !isValidNonRootPath(path) {
		return 0, result.Invalid
	}

	superblock := f.getSuperblock()
	if superblock == nil {
		return 0, result.SuperblockInitFailed
	}

	index, err := f.fstIndex(superblock, path)
	if err != nil {
		return 0, result.NotFound
	}

	if !superblock.Fst[index].IsFile() {
		return 0, result.Invalid
	}

	if !hasPermission(&superblock.Fst[index], uid, gid, mode) {
		return 0, result.AccessDenied
	}

	h := f.assignFreeHandle(uid, gid)
	if h == nil {
		return 0, result.NoFreeHandle
	}
	h.fstIndex = index
	h.mode = mode
	h.fileOffset = 0
	// The file size is captured once per handle. If the same file is opened
	// twice and the second handle grows it, the first handle cannot read
	// past the original size.
	h.fileSize = superblock.Fst[index].Size
	return f.fdFromHandle(h), nil
}

func (f *fileSystem) Close(fd Fd) error {
	h := f.handleFromFd(fd)
	if h == nil {
		return result.Invalid
	}

	if f.cacheHandle == h {
		if err := f.flushFileCache(); err != nil {
			return err
		}
		f.cacheHandle = nil
		f.cacheData = nil
	}

	if h.superblockFlushNeeded {
		if err := f.flushSuperblock(); err != nil {
			return err
		}
	}

	*h = handle{fstIndex: types.InvalidFstIndex}
	return nil
}

func (f *fileSystem) ReadFile(fd Fd, p []byte) (uint32, error) {
	h := f.handleFromFd(fd)
	if h == nil || h.fstIndex >= types.FstEntryCount {
		return 0, result.Invalid
	}

	if h.mode&types.ModeRead == 0 {
		return 0, result.AccessDenied
	}

	count := uint32(len(p))
	if count+h.fileOffset > h.fileSize {
		count = h.fileSize - h.fileOffset
	}

	var processed uint32
	for processed != count {
		if err := f.populateFileCache(h, h.fileOffset, false); err != nil {
			return 0, err
		}

		start := h.fileOffset - uint32(f.cacheChainIndex)*types.ClusterDataSize
		length := types.ClusterDataSize - start
		if remaining := count - processed; length > remaining {
			length = remaining
		}

		copy(p[processed:processed+length], f.cacheData[start:start+length])
		h.fileOffset += length
		processed += length
	}
	return count, nil
}

func (f *fileSystem) WriteFile(fd Fd, p []byte) (uint32, error) {
	h := f.handleFromFd(fd)
	if h == nil || h.fstIndex >= types.FstEntryCount {
		return 0, result.Invalid
	}

	if h.mode&types.ModeWrite == 0 {
		return 0, result.AccessDenied
	}

	count := uint32(len(p))
	var processed uint32
	for processed != count {
		if err := f.populateFileCache(h, h.fileOffset, true); err != nil {
			return 0, err
		}

		start := h.fileOffset - uint32(f.cacheChainIndex)*types.ClusterDataSize
		length := types.ClusterDataSize - start
		if remaining := count - processed; length > remaining {
			length = remaining
		}

		copy(f.cacheData[start:start+length], p[processed:processed+length])
		h.fileOffset += length
		processed += length
		if h.fileOffset > h.fileSize {
			h.fileSize = h.fileOffset
		}
	}
	return count, nil
}

func (f *fileSystem) SeekFile(fd Fd, offset uint32, mode SeekMode) (uint32, error) {
	h := f.handleFromFd(fd)
	if h == nil || h.fstIndex >= types.FstEntryCount {
		return 0, result.Invalid
	}

	var newPosition uint32
	switch mode {
	case SeekSet:
		newPosition = offset
	case SeekCurrent:
		newPosition = h.fileOffset + offset
	case SeekEnd:
		newPosition = h.fileSize + offset
	default:
		return 0, result.Invalid
	}

	// This differs from POSIX behaviour, which allows seeking past the end
	// of the file.
	if newPosition > h.fileSize {
		return 0, result.Invalid
	}

	h.fileOffset = newPosition
	return h.fileOffset, nil
}

func (f *fileSystem) GetFileStatus(fd Fd) (FileStatus, error) {
	h := f.handleFromFd(fd)
	if h == nil || h.fstIndex >= types.FstEntryCount {
		return FileStatus{}, result.Invalid
	}

	if h.mode&types.ModeRead == 0 {
		return FileStatus{}, result.AccessDenied
	}

	return FileStatus{Offset: h.fileOffset, Size: h.fileSize}, nil
}
