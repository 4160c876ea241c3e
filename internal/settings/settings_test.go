package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/getnotes/internal/apperr"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "config.json"))
}

func TestSetGetRoundTrip(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Set("output", "/tmp/export"))
	require.NoError(t, s.Set("delay", "1.5"))
	require.NoError(t, s.Set("page-size", "50"))

	v, ok := s.Get("output")
	assert.True(t, ok)
	assert.Equal(t, "/tmp/export", v)

	v, _ = s.Get("delay")
	assert.Equal(t, "1.5", v)
	v, _ = s.Get("page_size")
	assert.Equal(t, "50", v)

	loaded := NewStore(s.Path()).Load()
	require.NotNil(t, loaded.PageSize)
	assert.Equal(t, 50, *loaded.PageSize)
}

func TestSetRejectsInvalid(t *testing.T) {
	s := newStore(t)
	cases := []struct{ key, val string }{
		{"delay", "-1"},
		{"delay", "abc"},
		{"page_size", "0"},
		{"page_size", "101"},
		{"page_size", "1.5"},
		{"unknown", "x"},
	}
	for _, c := range cases {
		err := s.Set(c.key, c.val)
		assert.ErrorIs(t, err, apperr.ErrInvalidSetting, "%s=%s", c.key, c.val)
	}
	assert.Empty(t, s.All())
}

func TestRemoveAndClear(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Set("delay", "2"))
	require.NoError(t, s.Set("output", "out"))
	require.NoError(t, s.Remove("delay"))

	_, ok := s.Get("delay")
	assert.False(t, ok)
	assert.Equal(t, map[string]string{"output": "out"}, s.All())

	require.NoError(t, s.Clear())
	assert.Empty(t, s.All())
	require.NoError(t, s.Clear())
}

func TestCorruptFileIsEmpty(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{{{"), 0o644))
	assert.Empty(t, s.All())
	require.NoError(t, s.Set("delay", "0"))
	v, ok := s.Get("delay")
	assert.True(t, ok)
	assert.Equal(t, "0", v)
}

func TestResolveOrder(t *testing.T) {
	explicit, persisted := 10, 30
	assert.Equal(t, 10, Resolve(&explicit, &persisted, 20))
	assert.Equal(t, 30, Resolve(nil, &persisted, 20))
	assert.Equal(t, 20, Resolve[int](nil, nil, 20))
}

func TestNormalize(t *testing.T) {
	k, ok := Normalize("page-size")
	assert.True(t, ok)
	assert.Equal(t, KeyPageSize, k)
	_, ok = Normalize("colour")
	assert.False(t, ok)
}
