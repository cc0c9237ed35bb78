package agentflow

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadImageByExtension(t *testing.T) {
	path := writeFile(t, "photo.JPG", []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3})
	data, mediaType, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if mediaType != "image/jpeg" {
		t.Fatalf("unexpected media type %q", mediaType)
	}
	if data != base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3}) {
		t.Fatalf("unexpected payload %q", data)
	}
}

func TestLoadImageSniffsContent(t *testing.T) {
	path := writeFile(t, "screenshot", []byte("GIF89a......"))
	_, mediaType, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if mediaType != "image/gif" {
		t.Fatalf("unexpected media type %q", mediaType)
	}
}

func TestLoadImageErrors(t *testing.T) {
	cases := map[string]string{
		"missing":     filepath.Join(t.TempDir(), "nope.png"),
		"empty":       writeFile(t, "empty.png", nil),
		"unsupported": writeFile(t, "notes.txt", []byte("plain text")),
		"too large":   writeFile(t, "huge.png", make([]byte, MaxImageBytes+1)),
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := LoadImage(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadImageUnsupportedMessage(t *testing.T) {
	_, _, err := LoadImage(writeFile(t, "diagram.bmp", []byte("BM....")))
	if err == nil || !strings.Contains(err.Error(), "unsupported image type") {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
}
