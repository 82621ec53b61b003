package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// webmMagic is the EBML header id every WebM file starts with.
var webmMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// WriteClip writes a replay clip of exactly size bytes: the EBML magic
// followed by filler. A size of zero leaves an empty clip, which capture
// treats as no video.
func WriteClip(t testing.TB, path string, size int64) []byte {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := bytes.Repeat([]byte{0x42}, int(max(size, 0)))
	copy(data, webmMagic)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return data
}
