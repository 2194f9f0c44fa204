package keywords

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satyamrathirar/popularity-vision/internal/model"
)

func writeKeywordsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileSourceLoadsAndDedupes(t *testing.T) {
	path := writeKeywordsFile(t, `
keywords:
  - n8n slack workflow
  - n8n google sheets
  - n8n slack workflow
  - n8n webhook
`)

	src := NewFileSource(path, nil)
	kws, err := src.Load(model.ModeFull)
	require.NoError(t, err)
	assert.Equal(t, []string{"n8n slack workflow", "n8n google sheets", "n8n webhook"}, kws)
}

func TestFileSourceTruncatesPerMode(t *testing.T) {
	path := writeKeywordsFile(t, `
keywords:
  - one
  - two
  - three
  - four
  - five
`)

	src := NewFileSource(path, map[model.Mode]int{
		model.ModeTest: 3,
	})

	testKws, err := src.Load(model.ModeTest)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, testKws)

	fullKws, err := src.Load(model.ModeFull)
	require.NoError(t, err)
	assert.Len(t, fullKws, 5)
}

func TestFileSourceEmptyFile(t *testing.T) {
	path := writeKeywordsFile(t, "keywords: []\n")

	src := NewFileSource(path, nil)
	_, err := src.Load(model.ModeFull)
	assert.Error(t, err)
}

func TestFileSourceMissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	_, err := src.Load(model.ModeFull)
	assert.Error(t, err)
}

func TestStaticSource(t *testing.T) {
	kws, err := Static("a", "b").Load(model.ModeDeep)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, kws)

	_, err = Static().Load(model.ModeFull)
	assert.Error(t, err)
}
