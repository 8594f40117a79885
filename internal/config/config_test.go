package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 16, cfg.Index.GraphDegree)
	assert.Equal(t, 64, cfg.Index.BuildComplexity)
	assert.False(t, cfg.Index.Recompute)

	assert.Equal(t, 0.5, cfg.Search.HybridAlpha)
	assert.Equal(t, 10, cfg.Search.TopK)
	assert.Equal(t, 64, cfg.Search.Complexity)
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 16, cfg.Index.GraphDegree)
}

func TestLoad_YamlFile_OverridesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
index:
  graph_degree: 32
  build_complexity: 128
search:
  hybrid_alpha: 0.7
  top_k: 20
`
	err := os.WriteFile(filepath.Join(tmpDir, ".leann.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Index.GraphDegree)
	assert.Equal(t, 128, cfg.Index.BuildComplexity)
	assert.Equal(t, 0.7, cfg.Search.HybridAlpha)
	assert.Equal(t, 20, cfg.Search.TopK)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
index:
  recompute: true
`
	err := os.WriteFile(filepath.Join(tmpDir, ".leann.yml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.True(t, cfg.Index.Recompute)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	tmpDir := t.TempDir()
	yamlContent := "version: 1\nindex:\n  graph_degree: 8\n"
	ymlContent := "version: 1\nindex:\n  graph_degree: 99\n"
	err := os.WriteFile(filepath.Join(tmpDir, ".leann.yaml"), []byte(yamlContent), 0o644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(tmpDir, ".leann.yml"), []byte(ymlContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Index.GraphDegree)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	invalidContent := `
version: 1
index:
  graph_degree: [invalid yaml syntax
`
	err := os.WriteFile(filepath.Join(tmpDir, ".leann.yaml"), []byte(invalidContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad_InvalidWeight_ReturnsValidationError(t *testing.T) {
	tmpDir := t.TempDir()
	invalidContent := `
version: 1
search:
  hybrid_alpha: 1.5
`
	err := os.WriteFile(filepath.Join(tmpDir, ".leann.yaml"), []byte(invalidContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "hybrid_alpha")
}

func TestFindProjectRoot_GitDirectory_ReturnsGitRoot(t *testing.T) {
	tmpDir := t.TempDir()
	gitDir := filepath.Join(tmpDir, ".git")
	nestedDir := filepath.Join(tmpDir, "src", "internal")
	require.NoError(t, os.Mkdir(gitDir, 0o755))
	require.NoError(t, os.MkdirAll(nestedDir, 0o755))

	root, err := FindProjectRoot(nestedDir)

	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindProjectRoot_ConfigFile_ReturnsConfigLocation(t *testing.T) {
	tmpDir := t.TempDir()
	nestedDir := filepath.Join(tmpDir, "src", "internal")
	require.NoError(t, os.MkdirAll(nestedDir, 0o755))
	err := os.WriteFile(filepath.Join(tmpDir, ".leann.yaml"), []byte("version: 1"), 0o644)
	require.NoError(t, err)

	root, err := FindProjectRoot(nestedDir)

	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindProjectRoot_NoMarkers_ReturnsCurrentDir(t *testing.T) {
	tmpDir := t.TempDir()

	root, err := FindProjectRoot(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestLoad_EnvVarOverridesGraphDegree(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := "version: 1\nindex:\n  graph_degree: 24\n"
	err := os.WriteFile(filepath.Join(tmpDir, ".leann.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)
	t.Setenv("LEANN_GRAPH_DEGREE", "48")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 48, cfg.Index.GraphDegree)
}

func TestLoad_EnvVarOverridesHybridAlpha(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("LEANN_HYBRID_ALPHA", "0.9")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Search.HybridAlpha)
}

func TestLoad_EnvVarOverridesTopK(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("LEANN_TOP_K", "5")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Search.TopK)
}

func TestLoad_EnvVarOverridesRecompute(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("LEANN_RECOMPUTE", "true")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.True(t, cfg.Index.Recompute)
}

func TestLoad_EnvVarEmptyString_DoesNotOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("LEANN_GRAPH_DEGREE", "")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Index.GraphDegree)
}

func TestGetUserConfigPath_DefaultsToXDGLocation(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")

	path := GetUserConfigPath()

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	expected := filepath.Join(home, ".config", "leann", "config.yaml")
	assert.Equal(t, expected, path)
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	customConfig := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", customConfig)

	path := GetUserConfigPath()

	expected := filepath.Join(customConfig, "leann", "config.yaml")
	assert.Equal(t, expected, path)
}

func TestGetUserConfigDir_ReturnsParentOfConfigPath(t *testing.T) {
	dir := GetUserConfigDir()
	path := GetUserConfigPath()

	assert.Equal(t, filepath.Dir(path), dir)
}

func TestUserConfigExists_ReturnsFalseWhenMissing(t *testing.T) {
	emptyDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", emptyDir)

	assert.False(t, UserConfigExists())
}

func TestUserConfigExists_ReturnsTrueWhenPresent(t *testing.T) {
	configDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)
	leannDir := filepath.Join(configDir, "leann")
	require.NoError(t, os.MkdirAll(leannDir, 0o755))
	configPath := filepath.Join(leannDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1"), 0o644))

	assert.True(t, UserConfigExists())
}

func TestLoad_UserConfigOverridesDefaults(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	leannDir := filepath.Join(configDir, "leann")
	require.NoError(t, os.MkdirAll(leannDir, 0o755))
	userConfig := "version: 1\nsearch:\n  hybrid_alpha: 0.8\n"
	require.NoError(t, os.WriteFile(filepath.Join(leannDir, "config.yaml"), []byte(userConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.Search.HybridAlpha)
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	leannDir := filepath.Join(configDir, "leann")
	require.NoError(t, os.MkdirAll(leannDir, 0o755))
	userConfig := "version: 1\nindex:\n  graph_degree: 24\n  build_complexity: 96\n"
	require.NoError(t, os.WriteFile(filepath.Join(leannDir, "config.yaml"), []byte(userConfig), 0o644))

	projectConfig := "version: 1\nindex:\n  graph_degree: 48\n"
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".leann.yaml"), []byte(projectConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, 48, cfg.Index.GraphDegree)
	// user config's build_complexity is still used (not overridden by project)
	assert.Equal(t, 96, cfg.Index.BuildComplexity)
}

func TestLoad_EnvVarOverridesUserAndProjectConfig(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)
	t.Setenv("LEANN_GRAPH_DEGREE", "12")

	leannDir := filepath.Join(configDir, "leann")
	require.NoError(t, os.MkdirAll(leannDir, 0o755))
	userConfig := "version: 1\nindex:\n  graph_degree: 24\n"
	require.NoError(t, os.WriteFile(filepath.Join(leannDir, "config.yaml"), []byte(userConfig), 0o644))

	projectConfig := "version: 1\nindex:\n  graph_degree: 48\n"
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".leann.yaml"), []byte(projectConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Index.GraphDegree)
}

func TestLoad_InvalidUserConfig_ReturnsError(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	leannDir := filepath.Join(configDir, "leann")
	require.NoError(t, os.MkdirAll(leannDir, 0o755))
	invalidConfig := "version: 1\nindex:\n  graph_degree: [invalid yaml\n"
	require.NoError(t, os.WriteFile(filepath.Join(leannDir, "config.yaml"), []byte(invalidConfig), 0o644))

	cfg, err := Load(projectDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "user config")
}
