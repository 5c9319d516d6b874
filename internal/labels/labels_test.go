package labels

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	table, err := Parse([]byte("cat\ndog\n"), MaxLabels)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	cat, err := table.At(0)
	require.NoError(t, err)
	assert.Equal(t, "cat", cat)

	dog, err := table.At(1)
	require.NoError(t, err)
	assert.Equal(t, "dog", dog)
}

func TestParseNoTrailingNewline(t *testing.T) {
	table, err := Parse([]byte("cat\ndog"), MaxLabels)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
}

func TestParseSkipsBlankLines(t *testing.T) {
	table, err := Parse([]byte("cat\n\n\ndog\n"), MaxLabels)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
}

func TestParseStripsCarriageReturn(t *testing.T) {
	table, err := Parse([]byte("cat\r\ndog\r\n"), MaxLabels)
	require.NoError(t, err)
	cat, err := table.At(0)
	require.NoError(t, err)
	assert.Equal(t, "cat", cat)
}

func TestParseCapDiscardsRemainder(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 1001; i++ {
		fmt.Fprintf(&b, "label%d\n", i)
	}
	table, err := Parse([]byte(b.String()), MaxLabels)
	require.NoError(t, err)
	require.Equal(t, 1000, table.Len())

	first, err := table.At(0)
	require.NoError(t, err)
	assert.Equal(t, "label0", first)

	last, err := table.At(999)
	require.NoError(t, err)
	assert.Equal(t, "label999", last)
}

func TestParseZeroLabelsFails(t *testing.T) {
	for _, input := range []string{"", "\n\n\n"} {
		_, err := Parse([]byte(input), MaxLabels)
		assert.ErrorIs(t, err, ErrNoLabels, "input %q", input)
	}
}

func TestAtOutOfRange(t *testing.T) {
	table, err := Parse([]byte("cat\n"), MaxLabels)
	require.NoError(t, err)

	_, err = table.At(1)
	assert.Error(t, err)
	_, err = table.At(-1)
	assert.Error(t, err)
}

func TestAtReturnsOwnedCopy(t *testing.T) {
	buf := []byte("cat\ndog\n")
	table, err := Parse(buf, MaxLabels)
	require.NoError(t, err)

	got, err := table.At(0)
	require.NoError(t, err)

	// Clobbering the backing buffer must not affect a selected label.
	for i := range buf {
		buf[i] = 'x'
	}
	assert.Equal(t, "cat", got)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("tabby\nfox\n"), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestLoadHonorsStagingCap(t *testing.T) {
	// Lines long enough that the byte cap binds before the entry cap:
	// everything past MaxBufferBytes must be ignored.
	filler := strings.Repeat("x", 110)
	var b strings.Builder
	for i := 0; b.Len() < MaxBufferBytes; i++ {
		fmt.Fprintf(&b, "label%d-%s\n", i, filler)
	}
	b.WriteString("overflow\n")

	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	last, err := table.At(table.Len() - 1)
	require.NoError(t, err)
	assert.NotEqual(t, "overflow", last)
}
