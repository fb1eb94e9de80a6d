package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/tts-job-service/internal/fileutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	testPath := filepath.Join(t.TempDir(), "new", "dir")

	require.NoError(t, fileutil.EnsureDir(testPath))

	info, err := os.Stat(testPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, fileutil.EnsureDir(testPath), "existing directory must be accepted")
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{input: "chapter-01", expected: "chapter-01"},
		{input: "../../etc/passwd", expected: "_.._etc_passwd"},
		{input: "a:b*c?d", expected: "a_b_c_d"},
		{input: "my story", expected: "my_story"},
		{input: "  ", expected: "output"},
		{input: "", expected: "output"},
		{input: `dir\name|x`, expected: "dir_name_x"},
	}

	for _, testCase := range tests {
		assert.Equal(t, testCase.expected, fileutil.SanitizeFilename(testCase.input), "input %q", testCase.input)
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "45.2s", fileutil.FormatDuration(45.2))
	assert.Equal(t, "5m 30.5s", fileutil.FormatDuration(330.5))
	assert.Equal(t, "1h 15m", fileutil.FormatDuration(4500))
}

func TestFormatFileSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "512 B", fileutil.FormatFileSize(512))
	assert.Equal(t, "1.5 KB", fileutil.FormatFileSize(1536))
	assert.Equal(t, "2.0 MB", fileutil.FormatFileSize(2*1024*1024))
	assert.Equal(t, "1.0 GB", fileutil.FormatFileSize(1024*1024*1024))
}

func TestFileSize(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sized.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 42), 0o600))

	assert.Equal(t, int64(42), fileutil.FileSize(path))
	assert.Equal(t, int64(0), fileutil.FileSize(filepath.Join(t.TempDir(), "missing")))
}
