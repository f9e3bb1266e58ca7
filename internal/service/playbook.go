package service

import (
	"path/filepath"
	"strings"
)

// PlaybookStep is one tool invocation. The literal "{files}" argument is
// replaced with the workspace file list at execution time.
type PlaybookStep struct {
	Tool      string
	Arguments []string
}

type Playbook struct {
	Name  string
	Steps []PlaybookStep
}

var playbooks = map[string]Playbook{
	"default": {
		Name: "default",
		Steps: []PlaybookStep{
			{Tool: "file", Arguments: []string{"{files}"}},
			{Tool: "strings", Arguments: []string{"-n", "8", "{files}"}},
			{Tool: "xxd", Arguments: []string{"-l", "256", "{files}"}},
			{Tool: "sha256sum", Arguments: []string{"{files}"}},
		},
	},
	"binary": {
		Name: "binary",
		Steps: []PlaybookStep{
			{Tool: "file", Arguments: []string{"{files}"}},
			{Tool: "readelf", Arguments: []string{"-h", "{files}"}},
			{Tool: "readelf", Arguments: []string{"-S", "{files}"}},
			{Tool: "strings", Arguments: []string{"-n", "8", "{files}"}},
			{Tool: "objdump", Arguments: []string{"-d", "-M", "intel", "{files}"}},
		},
	},
	"pdf": {
		Name: "pdf",
		Steps: []PlaybookStep{
			{Tool: "file", Arguments: []string{"{files}"}},
			{Tool: "pdfinfo", Arguments: []string{"{files}"}},
			{Tool: "pdftotext", Arguments: []string{"{files}", "-"}},
			{Tool: "strings", Arguments: []string{"{files}"}},
			{Tool: "exiftool", Arguments: []string{"{files}"}},
		},
	},
	"network": {
		Name: "network",
		Steps: []PlaybookStep{
			{Tool: "file", Arguments: []string{"{files}"}},
			{Tool: "tshark", Arguments: []string{"-r", "{files}", "-q", "-z", "io,stat,0"}},
			{Tool: "tshark", Arguments: []string{"-r", "{files}", "-Y", "http"}},
			{Tool: "tshark", Arguments: []string{"-r", "{files}", "-Y", "tcp.flags.syn==1"}},
			{Tool: "strings", Arguments: []string{"{files}"}},
		},
	},
	"forensics": {
		Name: "forensics",
		Steps: []PlaybookStep{
			{Tool: "file", Arguments: []string{"{files}"}},
			{Tool: "exiftool", Arguments: []string{"{files}"}},
			{Tool: "binwalk", Arguments: []string{"{files}"}},
			{Tool: "strings", Arguments: []string{"{files}"}},
			{Tool: "xxd", Arguments: []string{"-l", "512", "{files}"}},
		},
	},
	"archive": {
		Name: "archive",
		Steps: []PlaybookStep{
			{Tool: "file", Arguments: []string{"{files}"}},
			{Tool: "unzip", Arguments: []string{"-l", "{files}"}},
			{Tool: "strings", Arguments: []string{"{files}"}},
		},
	},
}

// SelectPlaybook picks the tool sequence for a job from its input file
// extensions. First match in priority order wins: network captures, then
// pdf, binaries, images, archives.
func SelectPlaybook(files []string) Playbook {
	extensions := make(map[string]bool, len(files))
	for _, f := range files {
		extensions[strings.ToLower(filepath.Ext(f))] = true
	}

	switch {
	case extensions[".pcap"] || extensions[".pcapng"]:
		return playbooks["network"]
	case extensions[".pdf"]:
		return playbooks["pdf"]
	case extensions[".elf"] || extensions[".exe"] || extensions[".bin"]:
		return playbooks["binary"]
	case extensions[".png"] || extensions[".jpg"] || extensions[".gif"]:
		return playbooks["forensics"]
	case extensions[".zip"] || extensions[".tar"]:
		return playbooks["archive"]
	default:
		return playbooks["default"]
	}
}
