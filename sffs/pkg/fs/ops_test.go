package fs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-sffs/sffs/pkg/result"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/types"
)

func TestCreateFileAndStat(t *testing.T) {
	_, driver := newFormattedFS(t)

	fd, err := driver.OpenFs(0, 0)
	require.NoError(t, err)
	defer driver.Close(fd)

	require.NoError(t, driver.CreateFile(fd, "/a", 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))

	metadata, err := driver.GetMetadata(fd, "/a")
	require.NoError(t, err)
	assert.Equal(t, types.Uid(0), metadata.UID)
	assert.Equal(t, uint32(0), metadata.Size)
	assert.True(t, metadata.IsFile)
	assert.Equal(t, types.ModeRead|types.ModeWrite, metadata.OwnerMode)
	assert.Equal(t, types.ModeNone, metadata.OtherMode)
}

func TestCreateValidation(t *testing.T) {
	_, driver := newFormattedFS(t)

	tests := []struct {
		name     string
		path     string
		expected error
	}{
		{name: "no leading separator", path: "a", expected: result.Invalid},
		{name: "root", path: "/", expected: result.Invalid},
		{name: "trailing separator", path: "/a/", expected: result.Invalid},
		{name: "too long", path: "/" + strings.Repeat("a", 64), expected: result.Invalid},
		{name: "control character", path: "/a\x01b", expected: result.Invalid},
		{name: "high byte", path: "/a\x80b", expected: result.Invalid},
		{name: "missing parent", path: "/no/such", expected: result.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := driver.CreateFile(InternalFd, tt.path, 0,
				types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestCreateAlreadyExists(t *testing.T) {
	_, driver := newFormattedFS(t)
	createTestFile(t, driver, "/dup")

	err := driver.CreateFile(InternalFd, "/dup", 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone)
	assert.ErrorIs(t, err, result.AlreadyExists)

	// Same name, different kind: still a conflict.
	err = driver.CreateDirectory(InternalFd, "/dup", 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone)
	assert.ErrorIs(t, err, result.AlreadyExists)
}

func TestDirectoryDepthLimit(t *testing.T) {
	_, driver := newFormattedFS(t)

	// Nine separators: rejected before the parents are even resolved.
	deep := "/a/b/c/d/e/f/g/h/i"
	err := driver.CreateDirectory(InternalFd, deep, 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone)
	assert.ErrorIs(t, err, result.TooManyPathComponents)

	// Eight separators are fine.
	parent := ""
	for _, component := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		parent += "/" + component
		require.NoError(t, driver.CreateDirectory(InternalFd, parent, 0,
			types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))
	}

	// Files have no depth limit of their own.
	require.NoError(t, driver.CreateFile(InternalFd, parent+"/file", 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))
}

func TestPermissionDenialOnOpen(t *testing.T) {
	_, driver := newFormattedFS(t)
	require.NoError(t, driver.CreateFile(InternalFd, "/u", 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))
	// Hand the file to uid 1.
	require.NoError(t, driver.SetMetadata(InternalFd, "/u", 1, 1, 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))

	// Unrelated uid/gid falls through to the other mode, which grants nothing.
	_, err := driver.OpenFile(2, 2, "/u", types.ModeRead)
	assert.ErrorIs(t, err, result.AccessDenied)

	// The owner is granted both modes.
	fd, err := driver.OpenFile(1, 1, "/u", types.ModeRead|types.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, driver.Close(fd))

	// Root bypasses the mode bits entirely.
	fd, err = driver.OpenFile(0, 99, "/u", types.ModeRead|types.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, driver.Close(fd))
}

func TestGroupPermission(t *testing.T) {
	_, driver := newFormattedFS(t)
	require.NoError(t, driver.CreateFile(InternalFd, "/g", 0,
		types.ModeRead|types.ModeWrite, types.ModeRead, types.ModeNone))
	require.NoError(t, driver.SetMetadata(InternalFd, "/g", 1, 5, 0,
		types.ModeRead|types.ModeWrite, types.ModeRead, types.ModeNone))

	// Group member may read but not write.
	fd, err := driver.OpenFile(2, 5, "/g", types.ModeRead)
	require.NoError(t, err)
	require.NoError(t, driver.Close(fd))

	_, err = driver.OpenFile(2, 5, "/g", types.ModeWrite)
	assert.ErrorIs(t, err, result.AccessDenied)
}

func TestDeleteFileFreesClusters(t *testing.T) {
	_, driver := newFormattedFS(t)
	createTestFile(t, driver, "/big")
	writeTestFile(t, driver, "/big", pattern(0x4001))

	stats, err := driver.GetNandStats(InternalFd)
	require.NoError(t, err)
	require.Equal(t, uint32(2), stats.UsedClusters)

	require.NoError(t, driver.Delete(InternalFd, "/big"))

	stats, err = driver.GetNandStats(InternalFd)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), stats.UsedClusters)
	assert.Equal(t, uint32(1), stats.UsedInodes)

	_, err = driver.GetMetadata(InternalFd, "/big")
	assert.ErrorIs(t, err, result.NotFound)
}

func TestDeleteOpenFileIsRejected(t *testing.T) {
	_, driver := newFormattedFS(t)
	createTestFile(t, driver, "/open")
	writeTestFile(t, driver, "/open", pattern(0x10))

	fd, err := driver.OpenFile(0, 0, "/open", types.ModeRead)
	require.NoError(t, err)

	assert.ErrorIs(t, driver.Delete(InternalFd, "/open"), result.InUse)

	require.NoError(t, driver.Close(fd))
	assert.NoError(t, driver.Delete(InternalFd, "/open"))
}

func TestDeleteDirectoryRecursively(t *testing.T) {
	_, driver := newFormattedFS(t)
	require.NoError(t, driver.CreateDirectory(InternalFd, "/dir", 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))
	createTestFile(t, driver, "/dir/a")
	createTestFile(t, driver, "/dir/b")
	writeTestFile(t, driver, "/dir/a", pattern(0x4000))

	// A directory containing an open file may not be deleted.
	fd, err := driver.OpenFile(0, 0, "/dir/b", types.ModeRead)
	require.NoError(t, err)
	assert.ErrorIs(t, driver.Delete(InternalFd, "/dir"), result.InUse)
	require.NoError(t, driver.Close(fd))

	require.NoError(t, driver.Delete(InternalFd, "/dir"))

	_, err = driver.GetMetadata(InternalFd, "/dir")
	assert.ErrorIs(t, err, result.NotFound)

	stats, err := driver.GetNandStats(InternalFd)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), stats.UsedClusters)
}

func TestDeleteMissingEntry(t *testing.T) {
	_, driver := newFormattedFS(t)
	assert.ErrorIs(t, driver.Delete(InternalFd, "/ghost"), result.NotFound)
}

func TestReadDirectoryOrder(t *testing.T) {
	_, driver := newFormattedFS(t)
	createTestFile(t, driver, "/a")
	createTestFile(t, driver, "/b")
	createTestFile(t, driver, "/c")

	children, err := driver.ReadDirectory(InternalFd, "/")
	require.NoError(t, err)
	// Children are listed newest first.
	assert.Equal(t, []string{"c", "b", "a"}, children)

	_, err = driver.ReadDirectory(InternalFd, "/a")
	assert.ErrorIs(t, err, result.Invalid)
}

func TestRenameOverExisting(t *testing.T) {
	image, driver := newFormattedFS(t)
	createTestFile(t, driver, "/x")
	createTestFile(t, driver, "/y")

	require.NoError(t, driver.Rename(InternalFd, "/x", "/y"))

	_, err := driver.GetMetadata(InternalFd, "/x")
	assert.ErrorIs(t, err, result.NotFound)

	metadata, err := driver.GetMetadata(InternalFd, "/y")
	require.NoError(t, err)
	assert.True(t, metadata.IsFile)

	// No duplicate entries survive in the FST.
	block := newestRawSuperblock(t, image)
	count := 0
	for i := range block.Fst {
		if block.Fst[i].Mode&3 != 0 && block.Fst[i].FileName() == "y" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	stats, err := driver.GetNandStats(InternalFd)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), stats.UsedInodes)
}

func TestRenameRules(t *testing.T) {
	_, driver := newFormattedFS(t)
	createTestFile(t, driver, "/file")
	require.NoError(t, driver.CreateDirectory(InternalFd, "/dir", 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))
	require.NoError(t, driver.CreateDirectory(InternalFd, "/dest", 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))

	// A file may not be renamed to the same basename.
	assert.ErrorIs(t, driver.Rename(InternalFd, "/file", "/dest/file"), result.Invalid)

	// A file may not replace a directory.
	assert.ErrorIs(t, driver.Rename(InternalFd, "/file", "/dir"), result.Invalid)

	// Directories have no same-basename restriction.
	require.NoError(t, driver.Rename(InternalFd, "/dir", "/dest/dir"))

	children, err := driver.ReadDirectory(InternalFd, "/dest")
	require.NoError(t, err)
	assert.Equal(t, []string{"dir"}, children)

	// Moving an open file is rejected.
	fd, err := driver.OpenFile(0, 0, "/file", types.ModeRead)
	require.NoError(t, err)
	assert.ErrorIs(t, driver.Rename(InternalFd, "/file", "/moved"), result.InUse)
	require.NoError(t, driver.Close(fd))

	require.NoError(t, driver.Rename(InternalFd, "/file", "/moved"))
	_, err = driver.GetMetadata(InternalFd, "/moved")
	assert.NoError(t, err)
}

func TestRenamePreservesMetadata(t *testing.T) {
	_, driver := newFormattedFS(t)
	createTestFile(t, driver, "/old")
	writeTestFile(t, driver, "/old", pattern(0x4800))

	require.NoError(t, driver.Rename(InternalFd, "/old", "/new"))

	// The FST entry moves as-is: size and ownership survive. Note that the
	// cluster HMAC salt includes the entry name, so the data of a renamed
	// file no longer verifies; the unusual same-basename restriction and the
	// console's use of rename on empty files both point at this.
	metadata, err := driver.GetMetadata(InternalFd, "/new")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x4800), metadata.Size)
	assert.Equal(t, types.Uid(0), metadata.UID)

	fd, err := driver.OpenFile(0, 0, "/new", types.ModeRead)
	require.NoError(t, err)
	defer driver.Close(fd)
	_, err = driver.ReadFile(fd, make([]byte, 0x10))
	assert.ErrorIs(t, err, result.CheckFailed)
}

func TestSetMetadataRules(t *testing.T) {
	_, driver := newFormattedFS(t)
	createTestFile(t, driver, "/m")
	require.NoError(t, driver.SetMetadata(InternalFd, "/m", 1, 1, 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))

	ownerFd, err := driver.OpenFs(1, 1)
	require.NoError(t, err)
	defer driver.Close(ownerFd)
	otherFd, err := driver.OpenFs(2, 2)
	require.NoError(t, err)
	defer driver.Close(otherFd)

	// Non-owners may not touch metadata.
	err = driver.SetMetadata(otherFd, "/m", 2, 2, 0,
		types.ModeRead, types.ModeNone, types.ModeNone)
	assert.ErrorIs(t, err, result.AccessDenied)

	// Owners may not give the file away.
	err = driver.SetMetadata(ownerFd, "/m", 2, 1, 0,
		types.ModeRead, types.ModeNone, types.ModeNone)
	assert.ErrorIs(t, err, result.AccessDenied)

	// Owners may update everything else.
	require.NoError(t, driver.SetMetadata(ownerFd, "/m", 1, 3, 0x7f,
		types.ModeRead, types.ModeRead, types.ModeRead))

	metadata, err := driver.GetMetadata(InternalFd, "/m")
	require.NoError(t, err)
	assert.Equal(t, types.Gid(3), metadata.GID)
	assert.Equal(t, types.FileAttribute(0x7f), metadata.Attribute)
	assert.Equal(t, types.ModeRead, metadata.OwnerMode)
}

func TestSetMetadataOnNonEmptyFile(t *testing.T) {
	_, driver := newFormattedFS(t)
	createTestFile(t, driver, "/full")
	writeTestFile(t, driver, "/full", pattern(0x10))

	err := driver.SetMetadata(InternalFd, "/full", 0, 0, 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone)
	assert.ErrorIs(t, err, result.FileNotEmpty)

	// Directories never hold data, so they can always be updated.
	require.NoError(t, driver.CreateDirectory(InternalFd, "/d", 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))
	require.NoError(t, driver.SetMetadata(InternalFd, "/d", 0, 9, 0,
		types.ModeRead|types.ModeWrite, types.ModeRead, types.ModeNone))
}

func TestGetMetadataPermissions(t *testing.T) {
	_, driver := newFormattedFS(t)
	require.NoError(t, driver.CreateDirectory(InternalFd, "/locked", 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))
	require.NoError(t, driver.SetMetadata(InternalFd, "/locked", 1, 1, 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))
	fileFd, err := driver.OpenFs(1, 1)
	require.NoError(t, err)
	require.NoError(t, driver.CreateFile(fileFd, "/locked/secret", 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))
	require.NoError(t, driver.Close(fileFd))

	// The root directory is always accessible, whoever asks.
	strangerFd, err := driver.OpenFs(7, 7)
	require.NoError(t, err)
	defer driver.Close(strangerFd)
	_, err = driver.GetMetadata(strangerFd, "/")
	assert.NoError(t, err)

	// Reading metadata requires read access on the parent directory.
	_, err = driver.GetMetadata(strangerFd, "/locked/secret")
	assert.ErrorIs(t, err, result.AccessDenied)
}

func TestDirectoryStats(t *testing.T) {
	_, driver := newFormattedFS(t)
	require.NoError(t, driver.CreateDirectory(InternalFd, "/dir", 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))
	require.NoError(t, driver.CreateDirectory(InternalFd, "/dir/sub", 0,
		types.ModeRead|types.ModeWrite, types.ModeNone, types.ModeNone))
	createTestFile(t, driver, "/dir/a")
	createTestFile(t, driver, "/dir/sub/b")
	writeTestFile(t, driver, "/dir/a", pattern(0x4001))
	writeTestFile(t, driver, "/dir/sub/b", pattern(0x10))

	stats, err := driver.GetDirectoryStats(InternalFd, "/dir")
	require.NoError(t, err)
	// dir + sub + two files.
	assert.Equal(t, uint32(4), stats.UsedInodes)
	assert.Equal(t, uint32(3), stats.UsedClusters)

	_, err = driver.GetDirectoryStats(InternalFd, "/dir/a")
	assert.ErrorIs(t, err, result.Invalid)

	// Historical quirk: a malformed path reports a superblock failure.
	_, err = driver.GetDirectoryStats(InternalFd, "no-slash")
	assert.ErrorIs(t, err, result.SuperblockInitFailed)
}
