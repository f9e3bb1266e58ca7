package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectPlaybookPriority(t *testing.T) {
	cases := []struct {
		name  string
		files []string
		want  string
	}{
		{"network beats binary", []string{"dump.pcap", "prog.elf"}, "network"},
		{"pcapng counts as network", []string{"capture.pcapng"}, "network"},
		{"pdf beats forensics", []string{"doc.pdf", "image.png"}, "pdf"},
		{"binary beats archive", []string{"prog.exe", "stuff.zip"}, "binary"},
		{"images pick forensics", []string{"image.jpg"}, "forensics"},
		{"archives last before default", []string{"stuff.tar"}, "archive"},
		{"unknown extensions fall back", []string{"notes.txt", "data.csv"}, "default"},
		{"no files falls back", nil, "default"},
		{"case insensitive", []string{"DUMP.PCAP"}, "network"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pb := SelectPlaybook(tc.files)
			assert.Equal(t, tc.want, pb.Name)
			assert.NotEmpty(t, pb.Steps)
		})
	}
}

func TestEveryPlaybookStartsWithFile(t *testing.T) {
	for name, pb := range playbooks {
		require.NotEmpty(t, pb.Steps, name)
		assert.Equal(t, "file", pb.Steps[0].Tool, name)
	}
}

func TestExpandPlaceholdersSubstitutesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.bin"), []byte("b"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o700))

	args := expandPlaceholders([]string{"-n", "8", "{files}"}, dir)
	assert.Equal(t, "-n", args[0])
	assert.Equal(t, "8", args[1])
	assert.ElementsMatch(t, []string{"a.txt", "b.bin"}, args[2:])
}

func TestExpandPlaceholdersDropsUnknown(t *testing.T) {
	args := expandPlaceholders([]string{"{unknown}", "keep"}, t.TempDir())
	assert.Equal(t, []string{"keep"}, args)
}
