package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	c := Config{}
	applyDefaults(&c)
	return c
}

func TestValidate_Defaults(t *testing.T) {
	c := validConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, 1000, c.Chunking.ChunkSize)
	assert.Equal(t, 100, c.Chunking.ChunkOverlap)
	assert.Equal(t, 1536, c.Embedding.Dimensions)
}

func TestValidate_Chunking(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{name: "overlap小于size", size: 500, overlap: 50, wantErr: false},
		{name: "overlap等于size", size: 500, overlap: 500, wantErr: true},
		{name: "overlap大于size", size: 100, overlap: 200, wantErr: true},
		{name: "size为负数", size: -1, overlap: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Chunking.ChunkSize = tt.size
			c.Chunking.ChunkOverlap = tt.overlap
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_StorageMode(t *testing.T) {
	c := validConfig()
	c.Storage.Mode = "fallback-at-runtime"
	assert.Error(t, c.Validate())

	c.Storage.Mode = "local"
	assert.NoError(t, c.Validate())
}
