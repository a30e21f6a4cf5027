package history

import (
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHistory(lines ...string) *History {
	h := New(afero.NewMemMapFs())
	for _, line := range lines {
		h.Add(line)
	}
	return h
}

func TestHistory_Last(t *testing.T) {
	h := newHistory("a", "b", "c")

	cases := map[string]struct {
		n    int
		want []Entry
	}{
		"all":      {3, []Entry{{1, "a"}, {2, "b"}, {3, "c"}}},
		"last-two": {2, []Entry{{2, "b"}, {3, "c"}}},
		"too-many": {10, []Entry{{1, "a"}, {2, "b"}, {3, "c"}}},
		"zero":     {0, []Entry{}},
		"negative": {-4, []Entry{}},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			assert.Equal(t, tc.want, h.Last(tc.n))
		})
	}

	assert.Equal(t, h.Last(3), h.All())
}

func TestHistory_ReadFile(t *testing.T) {
	h := newHistory("first")
	require.NoError(t, afero.WriteFile(h.fs, "hist", []byte("one\n\ntwo\n"), 0600))

	require.NoError(t, h.ReadFile("hist"))
	assert.Equal(t, []Entry{{1, "first"}, {2, "one"}, {3, "two"}}, h.All())

	assert.Error(t, h.ReadFile("does-not-exist"))
	assert.Equal(t, 3, h.Len())
}

func TestHistory_WriteFile(t *testing.T) {
	h := newHistory("a", "b")
	require.NoError(t, afero.WriteFile(h.fs, "hist", []byte("old contents\n"), 0600))

	require.NoError(t, h.WriteFile("hist"))

	contents, err := afero.ReadFile(h.fs, "hist")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(contents))
}

func TestHistory_WriteFile_readOnly(t *testing.T) {
	h := New(afero.NewReadOnlyFs(afero.NewMemMapFs()))
	h.Add("a")

	assert.Error(t, h.WriteFile("hist"))
	assert.Error(t, h.AppendFile("hist"))
}

func TestHistory_AppendFile(t *testing.T) {
	h := newHistory("a", "b")

	require.NoError(t, h.AppendFile("hist"))
	require.NoError(t, h.AppendFile("hist"))
	h.Add("c")
	require.NoError(t, h.AppendFile("hist"))

	contents, err := afero.ReadFile(h.fs, "hist")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", string(contents))
}

func TestHistory_Load(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "hist", []byte("old\n"), 0600))

	h := New(fs)
	require.NoError(t, h.Load("hist"))
	h.Add("new")
	require.NoError(t, h.AppendFile("hist"))

	contents, err := afero.ReadFile(fs, "hist")
	require.NoError(t, err)
	assert.Equal(t, "old\nnew\n", string(contents))
	assert.Equal(t, []Entry{{1, "old"}, {2, "new"}}, h.All())
}

func TestHistory_Clone(t *testing.T) {
	h := newHistory("a")
	clone := h.Clone()
	clone.Add("b")

	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 2, clone.Len())
}

func ExampleHistory_Last() {
	h := New(afero.NewMemMapFs())
	for _, line := range []string{"echo hello", "pwd", "history 2"} {
		h.Add(line)
	}

	for _, entry := range h.Last(2) {
		fmt.Printf("%5d  %s\n", entry.Index, entry.Line)
	}

	// Output:    2  pwd
	//     3  history 2
}
