package helper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareModel(t *testing.T) {
	t.Run("Existing models are not downloaded again", func(t *testing.T) {
		tests := []struct {
			modelName string
			onnxPath  string
			dirName   string
		}{
			{"excerpter-test/cached-model", "", "excerpter-test_cached-model"},
			{"excerpter-test/cached-onnx", "onnx/model.onnx", "excerpter-test_cached-onnx"},
			{"excerpter-test-flat", "", "excerpter-test-flat"},
		}

		for _, tt := range tests {
			expected := filepath.Join(ModelDir, tt.dirName)
			require.NoError(t, os.MkdirAll(expected, 0750))
			t.Cleanup(func() { _ = os.RemoveAll(expected) })

			path, err := PrepareModel(tt.modelName, tt.onnxPath)
			require.NoError(t, err, "Expected no download for %s", tt.modelName)
			assert.Equal(t, expected, path, "Expected slashes in %s to be replaced", tt.modelName)
		}
	})

	t.Run("Download the default sentence model", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skipping model download in short mode")
		}

		path, err := PrepareModel("sentence-transformers/all-MiniLM-L6-v2", "onnx/model.onnx")
		if err != nil {
			// Network access is not guaranteed in every environment
			assert.Contains(t, err.Error(), "failed to")
			return
		}
		assert.DirExists(t, path)
	})

	t.Run("Unknown model", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skipping model download in short mode")
		}

		modelPath := filepath.Join(ModelDir, "excerpter-test_does-not-exist")
		t.Cleanup(func() { _ = os.RemoveAll(modelPath) })

		_, err := PrepareModel("excerpter-test/does-not-exist", "")
		assert.Error(t, err)
	})
}
