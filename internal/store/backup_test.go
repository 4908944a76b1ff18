package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStoreFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestBackupFile_CreatesTimestampedCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "treedex.db")
	writeStoreFile(t, path, "v1")

	backup, err := BackupFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, backup)

	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestBackupFile_NoStoreIsNoOp(t *testing.T) {
	backup, err := BackupFile(filepath.Join(t.TempDir(), "missing.db"))
	require.NoError(t, err)
	assert.Empty(t, backup)
}

func TestListBackups_NewestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "treedex.db")
	writeStoreFile(t, path, "v1")

	first, err := BackupFile(path)
	require.NoError(t, err)
	// Distinct timestamps need a second boundary; fake it via mtimes
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(first, old, old))

	writeStoreFile(t, path, "v2")
	second, err := BackupFile(path)
	require.NoError(t, err)

	backups, err := ListBackups(path)
	require.NoError(t, err)
	if first != second {
		require.Len(t, backups, 2)
		assert.Equal(t, second, backups[0])
	}
}

func TestBackupFile_SameSecondBackupsGetDistinctPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "treedex.db")
	writeStoreFile(t, path, "v1")
	first, err := BackupFile(path)
	require.NoError(t, err)

	writeStoreFile(t, path, "v2")
	second, err := BackupFile(path)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestRestoreFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "treedex.db")
	writeStoreFile(t, path, "v1")
	backup, err := BackupFile(path)
	require.NoError(t, err)

	writeStoreFile(t, path, "v2")
	require.NoError(t, RestoreFile(backup, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	// The safety backup taken during restore must not clobber the
	// backup being restored from
	data, err = os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestRestoreFile_MissingBackup(t *testing.T) {
	err := RestoreFile(filepath.Join(t.TempDir(), "nope.bak"), filepath.Join(t.TempDir(), "x.db"))
	require.Error(t, err)
}
