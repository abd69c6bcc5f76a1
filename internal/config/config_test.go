package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"wiki": "https://wiki.example.com",
		"output": "dump.json",
		"mode": "api",
		"delay_seconds": 0.5,
		"workers": 4,
		"keep_raw": true
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://wiki.example.com", cfg.Wiki)
	assert.Equal(t, "dump.json", cfg.Output)
	assert.Equal(t, ModeAPI, cfg.Mode)
	assert.Equal(t, 0.5, cfg.DelaySeconds)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.KeepRaw)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeConfig(t, `{"wiki": `)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "empty config is valid", cfg: Config{}},
		{name: "full valid config", cfg: Config{Wiki: "https://wiki.example.com", Mode: ModeHTML, DelaySeconds: 1.5, Workers: 2, EmptyPolicy: EmptyPolicyRecord}},
		{name: "bad wiki URL", cfg: Config{Wiki: "not a url"}, wantErr: true},
		{name: "unknown mode", cfg: Config{Mode: "crawl"}, wantErr: true},
		{name: "negative delay", cfg: Config{DelaySeconds: -1}, wantErr: true},
		{name: "too many workers", cfg: Config{Workers: 64}, wantErr: true},
		{name: "unknown empty policy", cfg: Config{EmptyPolicy: "drop"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{Wiki: "https://wiki.example.com", Workers: 3}
	merged := cfg.MergeWithDefaults(Defaults())

	assert.Equal(t, "https://wiki.example.com", merged.Wiki)
	assert.Equal(t, 3, merged.Workers)
	assert.Equal(t, "wiki_content.json", merged.Output)
	assert.Equal(t, ModeAuto, merged.Mode)
	assert.Equal(t, 1.5, merged.DelaySeconds)
	assert.Equal(t, 100, merged.CheckpointEvery)
	assert.Equal(t, EmptyPolicySkip, merged.EmptyPolicy)
}

func TestMergeWithDefaults_ExplicitValuesWin(t *testing.T) {
	cfg := Config{Output: "custom.json", Mode: ModeHTML, DelaySeconds: 0.1, CheckpointEvery: 10}
	merged := cfg.MergeWithDefaults(Defaults())

	assert.Equal(t, "custom.json", merged.Output)
	assert.Equal(t, ModeHTML, merged.Mode)
	assert.Equal(t, 0.1, merged.DelaySeconds)
	assert.Equal(t, 10, merged.CheckpointEvery)
}
