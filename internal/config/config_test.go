package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig 写入一份满足 Validate 必填项的最小配置，chunking 段由调用方追加。
func writeConfig(t *testing.T, chunkingYAML string) string {
	t.Helper()
	content := `
jwt:
  secret: "test-secret"
embedding:
  base_url: "http://localhost:9997/v1"
  model: "bge-m3"
  dimensions: 1024
llm:
  base_url: "http://localhost:9997/v1"
  model: "qwen2.5-instruct"
vector_store:
  type: "elasticsearch"
  elasticsearch:
    addresses: "http://localhost:9200"
` + chunkingYAML
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesOverlapDefaultWhenAbsent(t *testing.T) {
	path := writeConfig(t, `
chunking:
  window_size: 500
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Chunking.WindowSize)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
}

// 显式写 overlap: 0 表示不重叠切分，不能被默认值覆盖。
func TestLoadKeepsExplicitZeroOverlap(t *testing.T) {
	path := writeConfig(t, `
chunking:
  window_size: 500
  overlap: 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Chunking.Overlap)
}

func TestLoadRejectsMissingJWTSecret(t *testing.T) {
	content := `
embedding:
  base_url: "http://localhost:9997/v1"
  model: "bge-m3"
  dimensions: 1024
llm:
  base_url: "http://localhost:9997/v1"
  model: "qwen2.5-instruct"
vector_store:
  type: "elasticsearch"
  elasticsearch:
    addresses: "http://localhost:9200"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")
}

func TestLoadRejectsOverlapNotBelowWindow(t *testing.T) {
	path := writeConfig(t, `
chunking:
  window_size: 100
  overlap: 100
`)
	_, err := Load(path)
	assert.Error(t, err)
}
