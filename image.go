package agentflow

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/shahintaesheikh/agentflow/src/models"
)

// MaxImageBytes is the largest image attached to a query.
const MaxImageBytes = 5 << 20

// LoadImage reads an image file and returns its base64 payload and media
// type. The type comes from the extension and falls back to sniffing the
// content; only png, jpeg, gif and webp are accepted.
func LoadImage(path string) (data, mediaType string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return "", "", fmt.Errorf("read image: %w", err)
	}
	if len(raw) == 0 {
		return "", "", fmt.Errorf("image %s is empty", path)
	}
	if len(raw) > MaxImageBytes {
		return "", "", fmt.Errorf("image %s exceeds %d bytes", path, MaxImageBytes)
	}

	mediaType = models.NormalizeMIME(path, "")
	if !models.IsSupportedImageMIME(mediaType) {
		mediaType = models.NormalizeMIME(path, http.DetectContentType(raw))
	}
	if !models.IsSupportedImageMIME(mediaType) {
		return "", "", fmt.Errorf("unsupported image type %q for %s", mediaType, path)
	}
	return base64.StdEncoding.EncodeToString(raw), mediaType, nil
}
