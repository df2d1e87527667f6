package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 50, cfg.Pipeline.ChunkOverlap)
	assert.Equal(t, 5000, cfg.Pipeline.MaxContentChars)
	assert.Equal(t, 1000, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 0.0001)
	assert.Equal(t, 384, cfg.Embed.Dimensions)
	assert.Len(t, cfg.Sources, 9)
	assert.Len(t, cfg.TestSources, 2)

	// 默认配置文件应被写出
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadRejectsBadOverlap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  chunk_size: 100\n  chunk_overlap: 100\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvironmentExpansion(t *testing.T) {
	t.Setenv("FINPIPE_TEST_KEY", "secret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  api_key: ${FINPIPE_TEST_KEY}\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.LLM.APIKey)
}

func TestSelectSources(t *testing.T) {
	cfg := &Config{Sources: DefaultSources(), TestSources: TestSources()}

	all := cfg.SelectSources(nil, false)
	assert.Len(t, all, 9)

	picked := cfg.SelectSources([]string{"bcp", "Contratos Públicos"}, false)
	require.Len(t, picked, 2)
	assert.Equal(t, "bcp", picked[0].Name)
	assert.Equal(t, "dncp", picked[1].Name)

	test := cfg.SelectSources(nil, true)
	assert.Len(t, test, 2)
}

func TestSourceValidation(t *testing.T) {
	for _, s := range append(DefaultSources(), TestSources()...) {
		assert.NoError(t, s.Validate(), s.Name)
	}

	bad := Source{Name: "x", Category: "y", URL: "not a url", ContentTypes: []string{"HTML"}, Route: "reports"}
	assert.Error(t, bad.Validate())
}

func TestLoadSourcesFile(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "list.yaml")
	require.NoError(t, os.WriteFile(list, []byte(`
- name: local
  category: Local
  url: http://localhost:9000/data.json
  content_types: [JSON]
  route: market
`), 0644))

	sources, err := LoadSourcesFile(list)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, []string{"JSON"}, sources[0].ContentTypes)

	wrapped := filepath.Join(dir, "wrapped.yaml")
	require.NoError(t, os.WriteFile(wrapped, []byte(`
sources:
  - name: page
    category: Page
    url: https://example.com/
    content_types: [TEXT, PDF]
    route: reports
`), 0644))

	sources, err = LoadSourcesFile(wrapped)
	require.NoError(t, err)
	assert.Equal(t, "page", sources[0].Name)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("- name: x\n  url: ftp://x\n"), 0644))
	_, err = LoadSourcesFile(invalid)
	assert.Error(t, err)
}
