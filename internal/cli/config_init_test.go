package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrichain/cropadvisor/internal/config"
)

func TestConfigInit_CreatesConfigAndGitignore(t *testing.T) {
	home := setupCLITest(t)

	out, err := execute(t, "config", "init")
	require.NoError(t, err, "config init should succeed in an empty home")
	assert.Contains(t, out, "Configuration initialized successfully")
	assert.Contains(t, out, filepath.Join(home, "config.yaml"))
	assert.Contains(t, out, "Created .gitignore")

	cfg, err := config.Load(filepath.Join(home, "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, config.DefaultTopN, cfg.Engine.TopN)

	data, err := os.ReadFile(filepath.Join(home, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, config.GitignoreContent(), string(data))

	info, err := os.Stat(filepath.Join(home, "cache"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConfigInit_RefusesToOverwrite(t *testing.T) {
	home := setupCLITest(t)
	configPath := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("engine:\n  top_n: 3\n"), 0o600))

	_, err := execute(t, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	data, readErr := os.ReadFile(configPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "top_n: 3", "existing config must be preserved")
}

func TestConfigInit_ForceOverwritesAndKeepsGitignore(t *testing.T) {
	home := setupCLITest(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("engine:\n  top_n: 3\n"), 0o600))
	customIgnore := "# mine\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, ".gitignore"), []byte(customIgnore), 0o644))

	out, err := execute(t, "config", "init", "--force")
	require.NoError(t, err)
	assert.NotContains(t, out, "Created .gitignore")

	cfg, err := config.Load(filepath.Join(home, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTopN, cfg.Engine.TopN)

	data, err := os.ReadFile(filepath.Join(home, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, customIgnore, string(data))
}

func TestConfigValidate(t *testing.T) {
	setupCLITest(t)

	out, err := execute(t, "config", "validate", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "Rules file: embedded")
	assert.Contains(t, out, "Classifier: none (rule-based ranking)")
	assert.Contains(t, out, "Offline: true")
	assert.Contains(t, out, "Prediction store: disabled")
}

func TestConfigValidate_OverlayErrors(t *testing.T) {
	setupCLITest(t)
	dir := t.TempDir()

	badEngine := writeFile(t, dir, "engine.yaml", "engine:\n  top_n: 0\n  fallback_crop: wheat\n")
	_, err := execute(t, "config", "validate", "--config", badEngine)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	missingModel := writeFile(t, dir, "model.yaml", "classifier:\n  model_path: "+filepath.Join(dir, "nope.json")+"\n")
	_, err = execute(t, "config", "validate", "--config", missingModel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classifier model")

	_, err = execute(t, "config", "validate", "--config", filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading configuration")
}
