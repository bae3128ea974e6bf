// Package workspace persists phone-supplied images and the legacy input side
// file under the active workspace directory.
package workspace

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	apperrors "github.com/vonxq/voice-to-cursor/internal/errors"
)

// ImageDir is the image directory relative to the workspace root. Rendered
// references use forward slashes regardless of platform.
const ImageDir = ".cursor/voice-images"

var (
	dataURLPrefix = regexp.MustCompile(`^data:image/[\w.+-]+;base64,`)
	unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// ImageStore writes images under <root>/.cursor/voice-images.
type ImageStore struct {
	root string
}

// NewImageStore returns a store rooted at the workspace directory. An empty
// root is allowed; every write then fails with workspace.missing.
func NewImageStore(root string) *ImageStore {
	return &ImageStore{root: root}
}

// Root returns the workspace directory.
func (s *ImageStore) Root() string { return s.root }

// Extension maps a MIME type to a file extension. Unknown types are saved as jpg.
func Extension(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}

// maxIDLen bounds the readable part of a sanitized id.
const maxIDLen = 128

// SanitizeID maps a client id to a file-name-safe token. Ids made only of
// [A-Za-z0-9_-] are kept as is. Any other id keeps its cleaned prefix plus
// "." and a hash of the raw id; clean ids never contain ".", so distinct ids
// never share a file.
func SanitizeID(id string) (string, error) {
	clean := unsafeIDChars.ReplaceAllString(id, "_")
	if strings.Trim(clean, "_") == "" {
		return "", apperrors.New(apperrors.CodeImageInvalidID, fmt.Sprintf("image id %q is not usable", id))
	}
	if clean == id && len(clean) <= maxIDLen {
		return clean, nil
	}
	if len(clean) > maxIDLen {
		clean = clean[:maxIDLen]
	}
	sum := sha256.Sum256([]byte(id))
	return clean + "." + hex.EncodeToString(sum[:8]), nil
}

// Decode strips an optional data-URL prefix and decodes base64.
func Decode(payload string) ([]byte, error) {
	payload = dataURLPrefix.ReplaceAllString(strings.TrimSpace(payload), "")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders omit padding.
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if rawErr != nil {
			return nil, apperrors.Wrap(apperrors.CodeImageDecodeFailed, "image payload is not valid base64", err)
		}
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CodeImageDecodeFailed, "image payload is empty")
	}
	return data, nil
}

// Save decodes and writes an image named img_<id>.<ext>. It returns the
// workspace-relative reference. Saving the same id twice overwrites.
func (s *ImageStore) Save(id, payload, mimeType string) (string, error) {
	if s.root == "" {
		return "", apperrors.WorkspaceMissing()
	}
	safeID, err := SanitizeID(id)
	if err != nil {
		return "", err
	}
	data, err := Decode(payload)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, filepath.FromSlash(ImageDir))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperrors.Wrap(apperrors.CodeImageSaveFailed, "failed to create image directory", err)
	}

	name := fmt.Sprintf("img_%s.%s", safeID, Extension(mimeType))
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return "", apperrors.Wrap(apperrors.CodeImageSaveFailed, "failed to write image", err)
	}
	return path.Join(ImageDir, name), nil
}

// Remove deletes the file behind a reference returned by Save. A missing
// file is not an error. References outside the image directory are refused.
func (s *ImageStore) Remove(ref string) error {
	if s.root == "" {
		return apperrors.WorkspaceMissing()
	}
	if path.Dir(ref) != ImageDir {
		return apperrors.New(apperrors.CodeImageInvalidID, fmt.Sprintf("refusing to remove %q", ref))
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(ref)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CodeImageSaveFailed, "failed to remove image", err)
	}
	return nil
}
