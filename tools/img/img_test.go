package img

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateImage(t *testing.T) {
	dir := t.TempDir()
	host := filepath.Join(dir, "boot.cfg")
	content := []byte("timeout=3\ndefault=linux\n")
	require.NoError(t, os.WriteFile(host, content, 0o644))

	image := filepath.Join(dir, "card.img")
	*size = 32
	*label = "TESTIMG"
	require.NoError(t, create(image, []string{host}))

	info, err := os.Stat(image)
	require.NoError(t, err)
	assert.Equal(t, int64(32<<20), info.Size())

	var buf bytes.Buffer
	require.NoError(t, printInfo(&buf, image))
	assert.Contains(t, buf.String(), "mbr")
	assert.Contains(t, buf.String(), "p1:")

	buf.Reset()
	require.NoError(t, printList(&buf, image, "/"))
	assert.Contains(t, buf.String(), "boot.cfg")

	out := filepath.Join(dir, "boot.out")
	require.NoError(t, cp(image, ":/boot.cfg", out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestCopyIntoImage(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "card.img")
	*size = 32
	require.NoError(t, create(image, nil))

	host := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(host, []byte("hello"), 0o644))
	require.NoError(t, cp(image, host, ":/in.txt"))

	var buf bytes.Buffer
	require.NoError(t, printList(&buf, image, "/"))
	assert.Contains(t, buf.String(), "in.txt")

	out := filepath.Join(dir, "out.txt")
	require.NoError(t, cp(image, ":/in.txt", out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestCreateTooSmall(t *testing.T) {
	*size = 1
	if err := create(filepath.Join(t.TempDir(), "card.img"), nil); err == nil {
		t.Error("no error for a 1 MiB image")
	}
}

func TestCpNeedsImagePath(t *testing.T) {
	if err := cp("card.img", "a", "b"); err == nil {
		t.Error("no error for two host paths")
	}
	if err := cp("card.img", ":a", ":b"); err == nil {
		t.Error("no error for two image paths")
	}
}
