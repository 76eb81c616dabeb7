package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-sffs/sffs/pkg/crypto"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/nand"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/result"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/types"
)

func TestSuperblockRingRotation(t *testing.T) {
	image, driver := newTestImage(t)

	// Each format flushes exactly one new superblock version, advancing the
	// replica ring by one slot.
	for i := uint32(1); i <= 17; i++ {
		require.NoError(t, driver.Format(0))

		index := i % types.NumberOfSuperblocks
		magic, version := rawSuperblockVersion(image, index)
		assert.True(t, magic, "format %d", i)
		assert.Equal(t, i, version, "format %d", i)
	}

	// After 16 formats every slot has been written.
	for index := uint32(0); index < types.NumberOfSuperblocks; index++ {
		magic, _ := rawSuperblockVersion(image, index)
		assert.True(t, magic, "slot %d", index)
	}

	assert.Equal(t, uint32(17), newestRawSuperblock(t, image).Version)
}

func TestReopenFindsNewestSuperblock(t *testing.T) {
	image, driver := newFormattedFS(t)
	createTestFile(t, driver, "/persisted")
	writeTestFile(t, driver, "/persisted", pattern(0x1234))

	reopened, err := New(image, testKeys)
	require.NoError(t, err)

	metadata, err := reopened.GetMetadata(InternalFd, "/persisted")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1234), metadata.Size)

	assert.Equal(t, pattern(0x1234), readTestFile(t, reopened, "/persisted", 0x1234))
}

func TestCorruptedSuperblockIsRejected(t *testing.T) {
	image, driver := newFormattedFS(t)
	require.NoError(t, driver.CreateFile(InternalFd, "/x", 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))

	// Find the authoritative replica and corrupt its FAT area on NAND.
	var newestIndex uint32
	var newestVersion uint32
	for i := uint32(0); i < types.NumberOfSuperblocks; i++ {
		magic, version := rawSuperblockVersion(image, i)
		if magic && version >= newestVersion {
			newestIndex = i
			newestVersion = version
		}
	}
	offset := types.Offset(uint32(types.SuperblockCluster(newestIndex)), 0)
	image[offset+100] ^= 0xff

	reopened, err := New(image, testKeys)
	require.NoError(t, err)
	_, err = reopened.GetNandStats(InternalFd)
	assert.ErrorIs(t, err, result.SuperblockInitFailed)
}

func TestSuperblockSurvivesSingleHmacCopyCorruption(t *testing.T) {
	image, driver := newFormattedFS(t)
	createTestFile(t, driver, "/x")

	var newestIndex uint32
	var newestVersion uint32
	for i := uint32(0); i < types.NumberOfSuperblocks; i++ {
		magic, version := rawSuperblockVersion(image, i)
		if magic && version >= newestVersion {
			newestIndex = i
			newestVersion = version
		}
	}

	// Destroy the first HMAC copy of the replica's last cluster; the second
	// copy still verifies.
	lastCluster := uint32(types.SuperblockCluster(newestIndex)) + 15
	spare := types.Offset(lastCluster, types.HmacPage1) + types.DataBytesPerPage
	image[spare+types.Hmac1OffsetInPage] ^= 0xff

	reopened, err := New(image, testKeys)
	require.NoError(t, err)
	_, err = reopened.GetMetadata(InternalFd, "/x")
	assert.NoError(t, err)
}

func TestSuperblockVersionWrap(t *testing.T) {
	image, _ := newFormattedFS(t)

	// Plant a replica at the version counter's maximum so the next flush
	// wraps to zero.
	block := newestRawSuperblock(t, image)
	block.Version = 0xffffffff
	raw := block.Encode()

	device, err := nand.New(image, testKeys.AES, nil)
	require.NoError(t, err)

	salt := types.SuperblockSalt{StartingCluster: types.SuperblockCluster(0)}
	mac := crypto.MAC(testKeys.HMAC, salt.Encode(), raw)
	for c := uint32(0); c < types.ClustersPerSuperblock; c++ {
		clusterMac := crypto.Hash{}
		if c == 15 {
			clusterMac = mac
		}
		require.NoError(t, device.WriteCluster(types.SuperblockCluster(0)+uint16(c),
			raw[c*types.ClusterDataSize:(c+1)*types.ClusterDataSize], clusterMac))
	}

	wrapping, err := New(image, testKeys)
	require.NoError(t, err)
	require.NoError(t, wrapping.CreateFile(InternalFd, "/wrap", 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))

	// Fifteen extra versions are written after the wrap so that the stale
	// high-version replicas cannot win the next discovery.
	assert.Equal(t, uint32(15), newestRawSuperblock(t, image).Version)

	reopened, err := New(image, testKeys)
	require.NoError(t, err)
	metadata, err := reopened.GetMetadata(InternalFd, "/wrap")
	require.NoError(t, err)
	assert.True(t, metadata.IsFile)
}
