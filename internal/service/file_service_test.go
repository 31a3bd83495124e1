package service

import (
	"bytes"
	"mime/multipart"
	"os"
	"strings"
	"testing"

	apperrors "devconnect/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

// 在内存中构造 multipart 上传
func multipartFiles(t *testing.T, files map[string][]byte) []*multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["files"]
}

func newTestFileService(t *testing.T, maxSize int64) *FileService {
	return &FileService{basePath: t.TempDir(), publicPrefix: "/uploads", maxFileSize: maxSize}
}

func TestFileService_StoreImage(t *testing.T) {
	s := newTestFileService(t, 1024)
	files := multipartFiles(t, map[string][]byte{"avatar.png": pngHeader})

	info, err := s.StoreImage(files[0], 7, UploadAvatar)
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.MimeType)
	assert.Equal(t, "avatar.png", info.Name)
	assert.True(t, strings.HasPrefix(info.URL, "/uploads/user_7/avatar/"), info.URL)
	assert.True(t, strings.HasSuffix(info.URL, ".png"), info.URL)

	stored, err := os.ReadFile(info.Path)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, stored)
}

func TestFileService_RejectsInvalidUploads(t *testing.T) {
	s := newTestFileService(t, 64)

	text := multipartFiles(t, map[string][]byte{"notes.png": []byte("just some text pretending")})
	_, err := s.StoreImage(text[0], 1, UploadCover)
	assertCode(t, err, apperrors.CodeValidation)

	big := multipartFiles(t, map[string][]byte{"big.png": append(append([]byte{}, pngHeader...), make([]byte, 64)...)})
	_, err = s.StoreImage(big[0], 1, UploadCover)
	assertCode(t, err, apperrors.CodeValidation)
}

func TestFileService_StoreImages(t *testing.T) {
	s := newTestFileService(t, 1024)

	_, err := s.StoreImages(nil, 1, UploadPostImage)
	assertCode(t, err, apperrors.CodeValidation)

	files := multipartFiles(t, map[string][]byte{"a.png": pngHeader, "b.png": pngHeader})
	infos, err := s.StoreImages(files, 1, UploadPostImage)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.NotEqual(t, infos[0].URL, infos[1].URL)

	mixed := multipartFiles(t, map[string][]byte{"ok.png": pngHeader, "bad.png": []byte("plain text")})
	_, err = s.StoreImages(mixed, 2, UploadPostImage)
	assertCode(t, err, apperrors.CodeValidation)
	entries, _ := os.ReadDir(s.basePath + "/user_2/posts")
	assert.Empty(t, entries)
}
