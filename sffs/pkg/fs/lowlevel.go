package fs

import (
	"strings"

	"github.com/deploymenttheory/go-sffs/sffs/pkg/result"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/types"
)

// clusterForChain walks the FAT from firstCluster exactly index steps.
// It reports false when the walk leaves the addressable cluster range.
func (f *fileSystem) clusterForChain(superblock *types.Superblock, firstCluster uint16, index uint16) (uint16, bool) {
	cluster := firstCluster
	for i := uint16(0); i < index; i++ {
		if uint32(cluster) >= types.TotalClusters {
			f.log.Warnf("cannot find cluster with index %d in chain %#04x", index, firstCluster)
			return 0, false
		}
		cluster = superblock.Fat[cluster]
	}
	if uint32(cluster) >= types.TotalClusters {
		return 0, false
	}
	return cluster, true
}

// fstIndex resolves a path to an FST index, starting from the root entry.
func (f *fileSystem) fstIndex(superblock *types.Superblock, path string) (uint16, error) {
	if path == "/" || path == "" {
		return 0, nil
	}

	var index uint16
	for _, component := range strings.Split(path[1:], "/") {
		child, err := f.fstChildIndex(superblock, index, component)
		if err != nil || child >= types.FstEntryCount {
			return 0, result.Invalid
		}
		index = child
	}
	return index, nil
}

// fstChildIndex finds the named child of a directory entry by walking its
// sub/sib chain.
func (f *fileSystem) fstChildIndex(superblock *types.Superblock, parent uint16, fileName string) (uint16, error) {
	if parent >= types.FstEntryCount || len(fileName) > 12 {
		return 0, result.Invalid
	}

	index := superblock.Fst[parent].Sub
	if index >= types.FstEntryCount {
		return 0, result.Invalid
	}

	for index < types.FstEntryCount {
		if superblock.Fst[index].FileName() == fileName {
			return index, nil
		}
		index = superblock.Fst[index].Sib
	}
	return 0, result.Invalid
}

// unusedFstIndex finds the first free FST entry.
func (f *fileSystem) unusedFstIndex(superblock *types.Superblock) (uint16, error) {
	for i := range superblock.Fst {
		if superblock.Fst[i].Mode&3 == 0 {
			return uint16(i), nil
		}
	}
	return 0, result.FstFull
}

// readFileData reads and verifies one cluster of file data. The tag must
// match either of the two stored HMAC copies.
func (f *fileSystem) readFileData(fstIndex, chainIndex uint16) ([]byte, error) {
	if fstIndex >= types.FstEntryCount {
		return nil, result.Invalid
	}

	superblock := f.getSuperblock()
	if superblock == nil {
		return nil, result.SuperblockInitFailed
	}

	entry := &superblock.Fst[fstIndex]
	if !entry.IsFile() || entry.Size <= uint32(chainIndex)*types.ClusterDataSize {
		return nil, result.Invalid
	}

	cluster, ok := f.clusterForChain(superblock, entry.Sub, chainIndex)
	if !ok {
		return nil, result.Invalid
	}

	res, err := f.dev.ReadCluster(cluster)
	if err != nil {
		return nil, err
	}

	mac := f.dataMAC(superblock, res.Data, fstIndex, chainIndex)
	if mac != res.Hmac1 && mac != res.Hmac2 {
		f.log.Errorf("failed to verify cluster data (fst index %#04x chain index %d)", fstIndex, chainIndex)
		return nil, result.CheckFailed
	}

	return res.Data, nil
}

// writeFileData writes one cluster of file data to a freshly allocated
// cluster, splices it into the chain and frees the replaced cluster. The old
// chain stays live until the superblock is flushed, so a failed write never
// loses committed data. Writes may only grow a file.
func (f *fileSystem) writeFileData(fstIndex uint16, data []byte, chainIndex uint16, newSize uint32) error {
	f.log.Debugf("writing to file %#04x chain index %d", fstIndex, chainIndex)
	if fstIndex >= types.FstEntryCount {
		return result.Invalid
	}

	superblock := f.getSuperblock()
	if superblock == nil {
		return result.SuperblockInitFailed
	}

	entry := &superblock.Fst[fstIndex]
	if !entry.IsFile() || newSize <= entry.Size {
		return result.Invalid
	}

	// Clusters are allocated first-free with no wear leveling: the target is
	// an in-memory image, not a real flash device, and tooling depends on
	// deterministic cluster indices.
	cluster := uint16(0)
	found := false
	for i, value := range superblock.Fat {
		if value == types.ClusterUnused {
			cluster = uint16(i)
			found = true
			break
		}
	}
	if !found {
		return result.NoFreeSpace
	}
	f.log.Debugf("found free cluster %#04x", cluster)

	mac := f.dataMAC(superblock, data, fstIndex, chainIndex)
	if err := f.dev.WriteCluster(cluster, data, mac); err != nil {
		return err
	}

	oldCluster, oldExists := f.clusterForChain(superblock, entry.Sub, chainIndex)

	// Point the previous cluster (or the FST) at the new cluster.
	if chainIndex == 0 {
		entry.Sub = cluster
	} else {
		prev, ok := f.clusterForChain(superblock, entry.Sub, chainIndex-1)
		if !ok {
			return result.Invalid
		}
		superblock.Fat[prev] = cluster
	}

	// When replacing another cluster, keep pointing at the same next cluster.
	if oldExists {
		superblock.Fat[cluster] = superblock.Fat[oldCluster]
	} else {
		superblock.Fat[cluster] = types.ClusterLastInChain
	}

	if oldExists {
		f.log.Debugf("freeing cluster %#04x", oldCluster)
		superblock.Fat[oldCluster] = types.ClusterUnused
	}

	entry.Size = newSize
	return nil
}
