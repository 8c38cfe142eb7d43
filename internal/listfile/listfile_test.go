package listfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binderveil/binderveil/internal/blocklist"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "sdcard", "detach.bin"), filepath.Join(dir, "module", "detach.bin"), blocklist.Options{})
}

func TestStoreAddListRemove(t *testing.T) {
	s := newTestStore(t)

	names, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, s.Add("com.example.one"))
	require.NoError(t, s.Add("com.example.two"))

	names, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"com.example.one", "com.example.two"}, names)

	ok, err := s.Contains("com.example.two")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Remove("com.example.one"))
	names, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"com.example.two"}, names)
}

func TestStoreAddDuplicate(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add("com.example.one"))
	assert.ErrorIs(t, s.Add("com.example.one"), ErrExists)
}

func TestStoreRemoveMissing(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add("com.example.one"))
	assert.ErrorIs(t, s.Remove("com.example.other"), ErrNotFound)
}

func TestStoreAddAfterTerminator(t *testing.T) {
	s := newTestStore(t)
	first, err := blocklist.AppendEntry(nil, "com.first", s.Options)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Primary), 0o755))
	require.NoError(t, os.WriteFile(s.Primary, append(first, 0), 0o600))

	require.NoError(t, s.Add("com.second"))
	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"com.first", "com.second"}, names)
	assert.ErrorIs(t, s.Add("com.second"), ErrExists)

	require.NoError(t, s.Remove("com.first"))
	names, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"com.second"}, names)

	want, err := blocklist.AppendEntry(nil, "com.second", s.Options)
	require.NoError(t, err)
	raw, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, want, raw, "terminator and unreachable tail are dropped")
}

func TestStoreMirrorsChanges(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add("com.example.one"))

	primary, err := os.ReadFile(s.Primary)
	require.NoError(t, err)
	mirror, err := os.ReadFile(s.Mirror)
	require.NoError(t, err)
	assert.Equal(t, primary, mirror)

	bl, err := blocklist.Parse(primary, s.Options)
	require.NoError(t, err)
	assert.Equal(t, []string{"com.example.one"}, bl.Names())
}

func TestStoreReadFallsBackToMirror(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add("com.example.one"))
	require.NoError(t, os.Remove(s.Primary))

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"com.example.one"}, names)
}

func TestStoreReset(t *testing.T) {
	s := newTestStore(t)

	removed, err := s.Reset()
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, s.Add("com.example.one"))
	removed, err = s.Reset()
	require.NoError(t, err)
	assert.True(t, removed)

	assert.NoFileExists(t, s.Primary)
	assert.NoFileExists(t, s.Mirror)
}

func TestStoreWordFormat(t *testing.T) {
	dir := t.TempDir()
	opts := blocklist.Options{Format: blocklist.FormatWord}
	s := New(filepath.Join(dir, "detach.bin"), "", opts)

	require.NoError(t, s.Add("com.example.one"))
	data, err := os.ReadFile(s.Primary)
	require.NoError(t, err)
	// 4-byte length word, then 2n-1 bytes.
	assert.Len(t, data, 4+2*len("com.example.one")-1)

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"com.example.one"}, names)
}
