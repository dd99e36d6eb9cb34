package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{"gs://exports/ptsb/2025-09.xlsx", "exports", "ptsb/2025-09.xlsx", false},
		{"gs://exports/file.csv", "exports", "file.csv", false},
		{"gs://exports", "", "", true},
		{"gs://exports/", "", "", true},
		{"gs:///file.csv", "", "", true},
		{"/tmp/file.csv", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.object, object)
		})
	}
}

func TestFetchLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "revolut.csv")
	require.NoError(t, os.WriteFile(path, []byte("Started Date,Description\n"), 0o644))

	f, err := Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "revolut.csv", f.Name)

	data, err := io.ReadAll(f.Reader())
	require.NoError(t, err)
	assert.Equal(t, "Started Date,Description\n", string(data))

	again, err := io.ReadAll(f.Reader())
	require.NoError(t, err)
	assert.Equal(t, data, again, "Reader can be called repeatedly")
}

func TestFetchLocalMissing(t *testing.T) {
	_, err := Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFetchGCSInvalidURI(t *testing.T) {
	_, err := Fetch(context.Background(), "gs://bucket-only")
	assert.ErrorContains(t, err, "no object path")
}
