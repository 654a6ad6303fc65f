package partition

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cloo-solutions/kbrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Ensure_CreatesOnce(t *testing.T) {
	store := NewStore(t.TempDir())

	path, err := store.Ensure("finance")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Root(), "finance"), path)
	assert.DirExists(t, path)

	again, err := store.Ensure("finance")
	require.NoError(t, err)
	assert.Equal(t, path, again)

	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_Ensure_RejectsTraversal(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Ensure("../outside")
	assert.ErrorIs(t, err, domain.ErrInvalidKBName)
}

func TestStore_Save_OverwritesSameName(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Save("kb", "doc.pdf", strings.NewReader("first"))
	require.NoError(t, err)
	path, err := store.Save("kb", "doc.pdf", strings.NewReader("second"))
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))

	files, err := store.ListFiles("kb")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc.pdf"}, files)
}

func TestStore_Save_StripsDirectories(t *testing.T) {
	store := NewStore(t.TempDir())

	path, err := store.Save("kb", "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Root(), "kb", "passwd"), path)
}

func TestStore_Save_FailedWriteLeavesNoFile(t *testing.T) {
	store := NewStore(t.TempDir())
	readErr := errors.New("connection reset")

	_, err := store.Save("kb", "doc.pdf", io.MultiReader(strings.NewReader("partial"), failingReader{readErr}))
	require.ErrorIs(t, err, readErr)

	files, err := store.ListFiles("kb")
	require.NoError(t, err)
	assert.Empty(t, files)
	_, err = os.Stat(filepath.Join(store.Root(), "kb", "doc.pdf"))
	assert.True(t, os.IsNotExist(err))
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestStore_Save_InvalidFilename(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Save("kb", "", strings.NewReader("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidFilename)
}

func TestStore_ListFiles_Recursive(t *testing.T) {
	store := NewStore(t.TempDir())
	dir, err := store.Ensure("kb")
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.pdf"), []byte("b"), 0o644))

	files, err := store.ListFiles("kb")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.pdf", "b.pdf"}, files)
}

func TestStore_ListFiles_MissingPartition(t *testing.T) {
	store := NewStore(t.TempDir())

	files, err := store.ListFiles("nope")
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestStore_Delete(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Save("kb", "doc.pdf", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete("kb"))
	assert.False(t, store.Exists("kb"))

	err = store.Delete("kb")
	assert.ErrorIs(t, err, domain.ErrKnowledgeBaseNotFound)
}

func TestStore_ConcurrentSavesToFreshPartition(t *testing.T) {
	store := NewStore(t.TempDir())

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, name := range []string{"one.pdf", "two.pdf"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := store.Save("fresh", name, strings.NewReader(name))
			errs <- err
		}(name)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	files, err := store.ListFiles("fresh")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one.pdf", "two.pdf"}, files)
}
