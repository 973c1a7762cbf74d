package storage

import (
	"bytes"
	"io"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}

func TestLocalStorage_SaveOpenDelete(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), 1024)
	require.NoError(t, err)

	stored, err := s.Save(fileHeader(t, "Payslip.PDF", []byte("%PDF-1.4 test")), ClientDir(7))
	require.NoError(t, err)
	assert.Equal(t, "pdf", stored.Ext)
	assert.True(t, strings.HasPrefix(stored.Path, "clients/7/"))
	assert.Equal(t, int64(13), stored.Size)
	assert.True(t, s.Exists(stored.Path))

	f, err := s.Open(stored.Path)
	require.NoError(t, err)
	content, err := io.ReadAll(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test", string(content))

	require.NoError(t, s.Delete(stored.Path))
	assert.False(t, s.Exists(stored.Path))
	assert.NoError(t, s.Delete(stored.Path), "deleting twice is fine")
}

func TestLocalStorage_Validate(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), 10)
	require.NoError(t, err)

	_, err = s.Save(fileHeader(t, "script.exe", []byte("MZ")), "clients/1")
	assert.ErrorIs(t, err, ErrInvalidFileType)

	_, err = s.Save(fileHeader(t, "big.png", bytes.Repeat([]byte("a"), 11)), "clients/1")
	assert.ErrorIs(t, err, ErrFileTooLarge)

	ext, err := s.Validate(fileHeader(t, "photo.JPEG", []byte("x")))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", ext)
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), 0)
	require.NoError(t, err)

	_, err = s.Open("../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.ErrorIs(t, s.DeleteDir(""), ErrInvalidPath)
}

func TestLocalStorage_DeleteDir(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), 0)
	require.NoError(t, err)

	stored, err := s.SaveBytes([]byte("thumb"), ".png", ClientDir(3))
	require.NoError(t, err)
	require.NoError(t, s.DeleteDir(ClientDir(3)))
	assert.False(t, s.Exists(stored.Path))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("pdf"))
	assert.Equal(t, "image/jpeg", ContentType("JPG"))
	assert.Equal(t, "application/octet-stream", ContentType("zip"))
}
