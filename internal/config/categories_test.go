package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCategories(t *testing.T) {
	path := writeFile(t, `
categories:
  - name: Neurodegenerative
    seeds:
      - ADNI MRI dataset
      - OASIS brain MRI
  - name: " Spinal "
  - name: Neurodegenerative
  - name: ""
`)

	f, err := LoadCategories(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Neurodegenerative", "Spinal"}, f.Names())
	assert.Equal(t, map[string][]string{
		"Neurodegenerative": {"ADNI MRI dataset", "OASIS brain MRI"},
	}, f.Seeds())
}

func TestLoadCategories_Errors(t *testing.T) {
	_, err := LoadCategories(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadCategories(writeFile(t, "categories: {bad"))
	assert.Error(t, err)

	_, err = LoadCategories(writeFile(t, "categories: []"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "lists no categories")
}
