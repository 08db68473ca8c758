package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, members map[string][]byte, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(members[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func drain(t *testing.T, a *Archive) []Member {
	t.Helper()
	var out []Member
	for {
		m, err := a.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, m)
	}
}

func TestOpenCorrupt(t *testing.T) {
	_, err := Open([]byte("definitely not a zip"), DefaultLimits())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestEmptyArchiveIsNotAnError(t *testing.T) {
	data := buildZip(t, nil, nil)
	a, err := Open(data, DefaultLimits())
	require.NoError(t, err)
	assert.Empty(t, drain(t, a))
}

func TestIterationOrderAndContent(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"a.txt":     []byte("first"),
		"b.session": []byte("second"),
	}, []string{"a.txt", "b.session"})

	a, err := Open(data, DefaultLimits())
	require.NoError(t, err)
	members := drain(t, a)
	require.Len(t, members, 2)
	assert.Equal(t, "a.txt", members[0].Path)
	assert.Equal(t, []byte("first"), members[0].Data)
	assert.Equal(t, "b.session", members[1].Path)
	assert.Equal(t, []byte("second"), members[1].Data)
}

func TestDirectoriesAreSkipped(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("nested/")
	require.NoError(t, err)
	w, err := zw.Create("nested/n.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("1234567890"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	a, err := Open(buf.Bytes(), DefaultLimits())
	require.NoError(t, err)
	members := drain(t, a)
	require.Len(t, members, 1)
	assert.Equal(t, "nested/n.txt", members[0].Path)
}

func TestMemberCountCeiling(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"a.txt": []byte("a"),
		"b.txt": []byte("b"),
		"c.txt": []byte("c"),
	}, []string{"a.txt", "b.txt", "c.txt"})

	limits := DefaultLimits()
	limits.MaxMembers = 2
	_, err := Open(data, limits)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestMemberSizeCeiling(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"big.txt": bytes.Repeat([]byte("9"), 128),
	}, []string{"big.txt"})

	limits := DefaultLimits()
	limits.MaxMemberBytes = 64
	a, err := Open(data, limits)
	require.NoError(t, err)
	_, err = a.Next()
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestTotalSizeCeiling(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"a.txt": bytes.Repeat([]byte("1"), 40),
		"b.txt": bytes.Repeat([]byte("2"), 40),
	}, []string{"a.txt", "b.txt"})

	limits := DefaultLimits()
	limits.MaxTotalBytes = 64
	a, err := Open(data, limits)
	require.NoError(t, err)
	_, err = a.Next()
	require.NoError(t, err)
	_, err = a.Next()
	assert.ErrorIs(t, err, ErrTooLarge)
}
