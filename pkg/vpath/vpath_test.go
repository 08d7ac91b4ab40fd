package vpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("root", func(t *testing.T) {
		p, err := Parse("root/")
		require.NoError(t, err)
		assert.True(t, p.IsRoot())
		assert.Equal(t, KindDir, p.Kind())
		assert.Equal(t, "root/", p.String())
	})

	t.Run("file", func(t *testing.T) {
		p, err := Parse("root/docs/a.txt")
		require.NoError(t, err)
		assert.Equal(t, KindFile, p.Kind())
		assert.Equal(t, "a.txt", p.Name())
		assert.Equal(t, 2, p.Depth())
	})

	t.Run("directory trailing slash", func(t *testing.T) {
		p, err := Parse("root/docs/")
		require.NoError(t, err)
		assert.Equal(t, KindDir, p.Kind())
	})

	t.Run("collapses duplicate slashes", func(t *testing.T) {
		p, err := Parse("root//docs///a.txt")
		require.NoError(t, err)
		assert.Equal(t, "root/docs/a.txt", p.String())
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := Parse("")
		requireCode(t, err, EmptyPath)
	})

	t.Run("rejects missing root prefix", func(t *testing.T) {
		_, err := Parse("docs/a.txt")
		requireCode(t, err, InvalidPrefix)
	})

	t.Run("rejects NUL", func(t *testing.T) {
		_, err := Parse("root/a\x00b")
		requireCode(t, err, InvalidCharacters)
	})
}

func TestPushAndParent(t *testing.T) {
	root := Root()
	dir, err := root.PushDir("docs")
	require.NoError(t, err)
	assert.Equal(t, "root/docs/", dir.String())

	file, err := dir.PushFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "root/docs/a.txt", file.String())
	assert.Equal(t, KindFile, file.Kind())

	parent, err := file.Parent()
	require.NoError(t, err)
	assert.True(t, parent.Equal(dir))

	_, err = root.Parent()
	requireCode(t, err, WrongPathType)

	_, err = file.PushFile("b.txt")
	requireCode(t, err, WrongPathType)
}

func TestChildOf(t *testing.T) {
	d, _ := Parse("root/d/")
	sub, _ := Parse("root/d/sub/")
	other, _ := Parse("root/other/")

	assert.True(t, sub.ChildOf(d))
	assert.False(t, d.ChildOf(d))
	assert.False(t, d.ChildOf(sub))
	assert.False(t, other.ChildOf(d))

	file, _ := Parse("root/d/x.txt")
	assert.True(t, file.ChildOf(d))
}

func TestAsDirAsFile(t *testing.T) {
	f, _ := Parse("root/a")
	d := f.AsDir()
	assert.Equal(t, KindDir, d.Kind())
	assert.Equal(t, "root/a/", d.String())

	back := d.AsFile()
	assert.True(t, back.Equal(f))
}

func TestErrIfDirFile(t *testing.T) {
	f, _ := Parse("root/a.txt")
	d, _ := Parse("root/dir/")

	assert.NoError(t, f.ErrIfDir())
	assert.Error(t, d.ErrIfDir())

	assert.NoError(t, d.ErrIfFile())
	assert.Error(t, f.ErrIfFile())
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	verr, ok := err.(*Error)
	require.True(t, ok, "expected *vpath.Error, got %T", err)
	assert.Equal(t, code, verr.Code)
}
