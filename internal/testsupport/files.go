package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

var (
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}
	pngHeader  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
)

// WriteJPEG writes a file that content sniffing recognises as image/jpeg.
func WriteJPEG(t testing.TB, path string) string {
	t.Helper()
	return writeWithHeader(t, path, jpegHeader, 256)
}

// WritePNG writes a file that content sniffing recognises as image/png.
func WritePNG(t testing.TB, path string) string {
	t.Helper()
	return writeWithHeader(t, path, pngHeader, 256)
}

func writeWithHeader(t testing.TB, path string, header []byte, size int) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := make([]byte, size)
	copy(data, header)
	for i := len(header); i < size; i++ {
		data[i] = 0x42
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
