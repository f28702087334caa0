package blob

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutGeneratesKeyAndHashes(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	info, err := s.Put(context.Background(), "", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.NotEmpty(t, info.Key)
	assert.Equal(t, int64(5), info.Size)
	// sha256("hello")
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", info.SHA256)

	path, err := s.Path(info.Key)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLocalRejectsTraversal(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "../escape", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = s.URL(context.Background(), "/abs", 0)
	assert.Error(t, err)
}

func TestLocalDelete(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	info, err := s.Put(context.Background(), "docs/a.txt", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(context.Background(), info.Key))

	path, _ := s.Path(info.Key)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
