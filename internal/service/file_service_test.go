package service

import (
	"archive/zip"
	"bytes"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"ctfpilot-be/internal/config"
	"ctfpilot-be/internal/pkg/serverutils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFileService(t *testing.T) IFileService {
	t.Helper()
	cfg := config.Load()
	cfg.App.DataDir = t.TempDir()
	cfg.Upload.MaxSizeMB = 1
	return NewFileService(cfg)
}

func makeFileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("files", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	reader := multipart.NewReader(&buf, w.Boundary())
	form, err := reader.ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["files"][0]
}

func makeZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestSanitizeFilenameRejectsTraversal(t *testing.T) {
	svc := testFileService(t)

	for _, name := range []string{"../../etc/passwd", "..\\boot.ini", "/etc/shadow", "C:\\windows\\system32"} {
		_, err := svc.SanitizeFilename(name)
		assert.Error(t, err, name)

		var apiErr *serverutils.ApiError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 400, apiErr.Code)
	}
}

func TestSanitizeFilenameNormalizes(t *testing.T) {
	svc := testFileService(t)

	safe, err := svc.SanitizeFilename("my challenge (1).txt")
	require.NoError(t, err)
	assert.Equal(t, "my_challenge__1_.txt", safe)

	safe, err = svc.SanitizeFilename(".hidden.txt")
	require.NoError(t, err)
	assert.Equal(t, "hidden.txt", safe)

	_, err = svc.SanitizeFilename("...")
	assert.Error(t, err)
}

func TestValidateUploadExtensionAllowlist(t *testing.T) {
	svc := testFileService(t)

	require.NoError(t, svc.ValidateUpload(makeFileHeader(t, "dump.pcap", []byte("data"))))

	err := svc.ValidateUpload(makeFileHeader(t, "payload.sh", []byte("#!/bin/sh")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "File type not allowed")
}

func TestSaveUploadsWritesInputFiles(t *testing.T) {
	svc := testFileService(t)
	jobID := uuid.New()

	saved, err := svc.SaveUploads(jobID, []*multipart.FileHeader{
		makeFileHeader(t, "challenge.elf", []byte{0x7f, 'E', 'L', 'F'}),
		makeFileHeader(t, "notes.txt", []byte("hints")),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"challenge.elf", "notes.txt"}, saved)

	data, err := os.ReadFile(filepath.Join(svc.JobDir(jobID), "input", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hints", string(data))
}

func TestSaveUploadsExtractsZip(t *testing.T) {
	svc := testFileService(t)
	jobID := uuid.New()

	archive := makeZip(t, map[string][]byte{
		"inner/solve.py": []byte("print('CTF{x}')"),
		"readme.txt":     []byte("read me"),
	})

	saved, err := svc.SaveUploads(jobID, []*multipart.FileHeader{
		makeFileHeader(t, "bundle.zip", archive),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bundle.zip"}, saved)

	// Entries are flattened to their base names under extracted/.
	data, err := os.ReadFile(filepath.Join(svc.JobDir(jobID), "extracted", "solve.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('CTF{x}')", string(data))

	_, err = os.Stat(filepath.Join(svc.JobDir(jobID), "extracted", "readme.txt"))
	assert.NoError(t, err)
}

func TestSaveUploadsZipSlipEntryIsContained(t *testing.T) {
	svc := testFileService(t)
	jobID := uuid.New()

	archive := makeZip(t, map[string][]byte{
		"../../../escape.txt": []byte("nope"),
	})

	_, err := svc.SaveUploads(jobID, []*multipart.FileHeader{
		makeFileHeader(t, "evil.zip", archive),
	})
	require.NoError(t, err)

	// The entry must land inside extracted/, never above the job dir.
	_, statErr := os.Stat(filepath.Join(svc.JobDir(jobID), "extracted", "escape.txt"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(svc.JobDir(jobID), "..", "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWorkingDirPrefersExtracted(t *testing.T) {
	svc := testFileService(t)
	jobID := uuid.New()

	_, err := svc.WorkingDir(jobID)
	require.Error(t, err, "no files yet")

	_, err = svc.SaveUploads(jobID, []*multipart.FileHeader{
		makeFileHeader(t, "notes.txt", []byte("hints")),
	})
	require.NoError(t, err)

	dir, err := svc.WorkingDir(jobID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(svc.JobDir(jobID), "input"), dir)

	archive := makeZip(t, map[string][]byte{"flag.txt": []byte("CTF{zip}")})
	_, err = svc.SaveUploads(jobID, []*multipart.FileHeader{
		makeFileHeader(t, "bundle.zip", archive),
	})
	require.NoError(t, err)

	dir, err = svc.WorkingDir(jobID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(svc.JobDir(jobID), "extracted"), dir)
}

func TestListJobFiles(t *testing.T) {
	svc := testFileService(t)
	jobID := uuid.New()

	archive := makeZip(t, map[string][]byte{"solve.py": []byte("x = 1")})
	_, err := svc.SaveUploads(jobID, []*multipart.FileHeader{
		makeFileHeader(t, "notes.txt", []byte("hints")),
		makeFileHeader(t, "bundle.zip", archive),
	})
	require.NoError(t, err)

	files, err := svc.ListJobFiles(jobID)
	require.NoError(t, err)
	assert.Contains(t, files, "notes.txt")
	assert.Contains(t, files, "bundle.zip")
	assert.Contains(t, files, "extracted/solve.py")
}
