package fs

import (
	"github.com/deploymenttheory/go-sffs/sffs/pkg/crypto"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/result"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/types"
)

// superblockMAC computes the integrity tag for a superblock replica. The
// salt binds the tag to the replica's starting cluster.
func (f *fileSystem) superblockMAC(superblock *types.Superblock, index uint32) crypto.Hash {
	salt := types.SuperblockSalt{StartingCluster: types.SuperblockCluster(index)}
	return crypto.MAC(f.keys.HMAC, salt.Encode(), superblock.Encode())
}

// dataMAC computes the integrity tag for one cluster of file data. The salt
// binds the tag to the owning entry and the cluster's position in the chain.
func (f *fileSystem) dataMAC(superblock *types.Superblock, clusterData []byte,
	fstIndex, chainIndex uint16) crypto.Hash {
	entry := &superblock.Fst[fstIndex]
	salt := types.DataSalt{
		UID:        entry.UID,
		Name:       entry.Name,
		ChainIndex: uint32(chainIndex),
		FstIndex:   uint32(fstIndex),
		X3:         entry.X3,
	}
	return crypto.MAC(f.keys.HMAC, salt.Encode(), clusterData)
}

// readSuperblock reads and decodes one superblock replica without verifying
// its HMAC.
func (f *fileSystem) readSuperblock(index uint32) (*types.Superblock, error) {
	f.log.Debugf("reading superblock %d", index)
	raw := make([]byte, 0, types.SuperblockSize)
	for i := uint32(0); i < types.ClustersPerSuperblock; i++ {
		res, err := f.dev.ReadCluster(types.SuperblockCluster(index) + uint16(i))
		if err != nil {
			return nil, err
		}
		raw = append(raw, res.Data...)
	}
	return types.DecodeSuperblock(raw)
}

// getSuperblock returns the in-memory superblock, lazily discovering the
// newest valid replica on first use. It returns nil if no replica verifies.
func (f *fileSystem) getSuperblock() *types.Superblock {
	if f.superblock != nil {
		return f.superblock
	}

	var highestVersion uint32
	for i := uint32(0); i < types.NumberOfSuperblocks; i++ {
		superblock, err := f.readSuperblock(i)
		if err != nil || superblock.Magic != types.SuperblockMagic {
			continue
		}

		if superblock.Version < highestVersion {
			f.log.Debugf("found an older superblock: index %d, version %d", i, superblock.Version)
			continue
		}

		f.log.Debugf("found a newer superblock: index %d, version %d", i, superblock.Version)
		highestVersion = superblock.Version
		f.superblockIndex = i
		f.superblock = superblock
	}

	if f.superblock == nil {
		return nil
	}

	mac := f.superblockMAC(f.superblock, f.superblockIndex)
	res, err := f.dev.ReadCluster(types.SuperblockCluster(f.superblockIndex) + 15)
	if err != nil || (mac != res.Hmac1 && mac != res.Hmac2) {
		f.log.Errorf("failed to verify superblock %d", f.superblockIndex)
		f.superblock = nil
		return nil
	}

	return f.superblock
}

// writeSuperblock advances the replica ring by one and writes the in-memory
// superblock to the chosen slot. Only the last cluster of a replica carries
// the real HMAC; the others store a zero tag.
func (f *fileSystem) writeSuperblock() error {
	f.superblockIndex = (f.superblockIndex + 1) % types.NumberOfSuperblocks
	mac := f.superblockMAC(f.superblock, f.superblockIndex)
	var zeroMac crypto.Hash

	raw := f.superblock.Encode()
	for cluster := uint32(0); cluster < types.ClustersPerSuperblock; cluster++ {
		clusterMac := zeroMac
		if cluster == 15 {
			clusterMac = mac
		}
		err := f.dev.WriteCluster(types.SuperblockCluster(f.superblockIndex)+uint16(cluster),
			raw[cluster*types.ClusterDataSize:(cluster+1)*types.ClusterDataSize], clusterMac)
		if err != nil {
			return err
		}
	}

	// According to WiiQt/nandbin, 15 other versions should be written after
	// an overflow so that the driver doesn't pick an older superblock.
	if f.superblock.Version == 0 {
		f.log.Debugf("superblock version overflowed -- writing 15 extra versions")
		for i := 0; i < 15; i++ {
			if err := f.flushSuperblock(); err != nil {
				return err
			}
		}
	}

	f.log.Debugf("flushed superblock (index %d, version %d)", f.superblockIndex, f.superblock.Version)
	return nil
}

// flushSuperblock persists the in-memory superblock as a new version,
// retrying across all 16 replica slots before giving up.
func (f *fileSystem) flushSuperblock() error {
	if f.superblock == nil {
		return result.NotFound
	}

	f.superblock.Version++

	for i := uint32(0); i < types.NumberOfSuperblocks; i++ {
		if err := f.writeSuperblock(); err == nil {
			return nil
		}
		f.log.Warnf("failed to write superblock at index %d", f.superblockIndex)
	}
	f.log.Errorf("failed to flush superblock")
	return result.SuperblockWriteFailed
}
