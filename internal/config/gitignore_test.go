package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrichain/cropadvisor/internal/config"
)

func TestEnsureGitignore_CreatesNewFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	created, err := config.EnsureGitignore(dir)
	require.NoError(t, err)
	assert.True(t, created, "should report file was created")

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, config.GitignoreContent(), string(data))
	assert.Contains(t, string(data), "cache/")
	assert.Contains(t, string(data), "*.log")
}

func TestEnsureGitignore_DoesNotOverwriteExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	gitignorePath := filepath.Join(dir, ".gitignore")

	customContent := "# my custom gitignore\nnode_modules/\n"
	require.NoError(t, os.WriteFile(gitignorePath, []byte(customContent), 0o644))

	created, err := config.EnsureGitignore(dir)
	require.NoError(t, err)
	assert.False(t, created, "should report file was NOT created")

	data, readErr := os.ReadFile(gitignorePath)
	require.NoError(t, readErr)
	assert.Equal(t, customContent, string(data), "existing content must be preserved")
}

func TestEnsureGitignore_CreatesParentDirectory(t *testing.T) {
	t.Parallel()

	nestedDir := filepath.Join(t.TempDir(), "sub", "deep", ".cropadvisor")

	created, err := config.EnsureGitignore(nestedDir)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = config.EnsureGitignore(nestedDir)
	require.NoError(t, err)
	assert.False(t, created, "second call should return false")
}

func TestEnsureDirs(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvLogFile, filepath.Join(home, "logs", "cropadvisor.log"))
	t.Cleanup(config.ResetGlobalConfigForTest)
	config.ResetGlobalConfigForTest()

	require.NoError(t, config.EnsureHomeDir())
	require.NoError(t, config.EnsureLogDir())
	require.NoError(t, config.EnsureCacheDir())

	for _, dir := range []string{home, filepath.Join(home, "logs"), filepath.Join(home, "cache")} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
}
