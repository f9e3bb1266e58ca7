package detector

// CategoryPattern is the static signal table for one challenge category.
type CategoryPattern struct {
	Keywords   []string
	Extensions []string
	Weight     float64
}

// Categories is the fixed, exhaustive category set. Every detection resolves
// to exactly one of these, with "misc" as the no-signal fallback.
var Categories = []string{"crypto", "pwn", "rev", "forensics", "web", "misc"}

const FallbackCategory = "misc"

var categoryPatterns = map[string]CategoryPattern{
	"crypto": {
		Keywords: []string{
			"rsa", "aes", "cipher", "ciphertext", "plaintext", "encrypt",
			"decrypt", "xor", "base64", "modulus", "exponent", "md5",
			"sha256", "rot13", "vigenere", "padding", "nonce", "oracle",
		},
		Extensions: []string{".pem", ".key", ".enc"},
		Weight:     1.0,
	},
	"pwn": {
		Keywords: []string{
			"buffer", "overflow", "stack", "canary", "rop", "gadget",
			"shellcode", "pwntools", "libc", "heap", "exploit", "ret2libc",
			"got", "plt", "syscall", "aslr",
		},
		Extensions: []string{".elf", ".so", ".bin"},
		Weight:     1.2,
	},
	"rev": {
		Keywords: []string{
			"reverse", "disassemble", "decompile", "ida", "ghidra",
			"crackme", "keygen", "assembly", "objdump", "obfuscated",
			"bytecode", "debugger",
		},
		Extensions: []string{".exe", ".dll", ".apk", ".pyc"},
		Weight:     1.0,
	},
	"forensics": {
		Keywords: []string{
			"forensics", "steganography", "stego", "exif", "metadata",
			"binwalk", "wireshark", "pcap", "volatility", "carving",
			"filesystem", "partition", "snapshot", "registry",
		},
		Extensions: []string{".pcap", ".pcapng", ".img", ".dd", ".raw", ".e01"},
		Weight:     1.1,
	},
	"web": {
		Keywords: []string{
			"http", "cookie", "session", "sql", "injection", "xss", "csrf",
			"javascript", "php", "webserver", "burp", "jwt", "cors",
			"ssrf", "lfi",
		},
		Extensions: []string{".html", ".php", ".jsp"},
		Weight:     1.0,
	},
	"misc": {
		Keywords: []string{
			"puzzle", "morse", "qrcode", "trivia", "esolang", "brainfuck",
		},
		Extensions: []string{},
		Weight:     0.5,
	},
}

// text-like extensions whose content is worth feeding into keyword scoring.
var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".py": true, ".c": true, ".cpp": true,
	".h": true, ".java": true, ".js": true, ".json": true, ".xml": true,
	".html": true, ".css": true, ".csv": true, ".log": true, ".sh": true,
	".php": true,
}

var archiveExtensions = map[string]bool{
	".zip": true,
}
