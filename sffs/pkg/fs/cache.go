package fs

import "github.com/deploymenttheory/go-sffs/sffs/pkg/types"

// The file cache is a single write-back slot shared by all handles: it holds
// at most one cluster of one handle's file. Switching handles or chain
// positions forces a flush first, so block-unaligned writes are paged
// through it one cluster at a time.

// populateFileCache binds the cache to the cluster containing offset,
// flushing any previous dirty cluster. A cluster-aligned offset at the end
// of the file yields a fresh zero-filled cluster (file extension); any other
// offset reads the existing cluster.
func (f *fileSystem) populateFileCache(h *handle, offset uint32, write bool) error {
	chainIndex := uint16(offset / types.ClusterDataSize)
	if f.cacheHandle == h && f.cacheChainIndex == chainIndex {
		return nil
	}

	if err := f.flushFileCache(); err != nil {
		return err
	}

	f.cacheHandle = h
	f.cacheChainIndex = chainIndex
	f.cacheForWrite = write
	f.cacheData = nil

	if offset%types.ClusterDataSize == 0 && offset == h.fileSize {
		f.log.Debugf("populating file cache with a new cluster")
		f.cacheData = make([]byte, types.ClusterDataSize)
	} else {
		f.log.Debugf("populating file cache from file")
		data, err := f.readFileData(h.fstIndex, chainIndex)
		if err != nil {
			return err
		}
		f.cacheData = data
	}

	return nil
}

// flushFileCache writes the cached cluster back if it is dirty. On success
// the owning handle is marked as needing a superblock flush so that Close
// persists the new metadata.
func (f *fileSystem) flushFileCache() error {
	if f.cacheHandle == nil || !f.cacheForWrite || len(f.cacheData) != types.ClusterDataSize {
		return nil
	}

	f.log.Debugf("flushing file cache")
	err := f.writeFileData(f.cacheHandle.fstIndex, f.cacheData, f.cacheChainIndex, f.cacheHandle.fileSize)
	if err == nil {
		f.cacheHandle.superblockFlushNeeded = true
	}
	return err
}
