package workspace

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/vonxq/voice-to-cursor/internal/errors"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"image/png":  "png",
		"IMAGE/PNG":  "png",
		"image/gif":  "gif",
		"image/webp": "webp",
		"image/jpeg": "jpg",
		"":           "jpg",
		"text/plain": "jpg",
	}
	for mime, want := range tests {
		if got := Extension(mime); got != want {
			t.Errorf("Extension(%q) = %q, want %q", mime, got, want)
		}
	}
}

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		in         string
		want       string
		wantPrefix string
		wantErr    bool
	}{
		{in: "1700000000000", want: "1700000000000"},
		{in: "abc-DEF_1", want: "abc-DEF_1"},
		{in: "../../etc/passwd", wantPrefix: "______etc_passwd."},
		{in: "a.b", wantPrefix: "a_b."},
		{in: strings.Repeat("x", 200), wantPrefix: strings.Repeat("x", 128) + "."},
		{in: "", wantErr: true},
		{in: "///", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizeID(tt.in)
		if tt.wantErr {
			if !apperrors.IsCode(err, apperrors.CodeImageInvalidID) {
				t.Errorf("SanitizeID(%q) err = %v, want invalid_id", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("SanitizeID(%q) err = %v", tt.in, err)
			continue
		}
		if tt.want != "" && got != tt.want {
			t.Errorf("SanitizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if tt.wantPrefix != "" && (!strings.HasPrefix(got, tt.wantPrefix) || len(got) != len(tt.wantPrefix)+16) {
			t.Errorf("SanitizeID(%q) = %q, want %q plus a 16-char hash", tt.in, got, tt.wantPrefix)
		}
		if strings.ContainsAny(got, "/\\") {
			t.Errorf("SanitizeID(%q) = %q contains a path separator", tt.in, got)
		}
	}
}

func TestSanitizeIDIsOneToOne(t *testing.T) {
	ids := []string{
		"a_b", "a.b", "a b", "a/b",
		strings.Repeat("y", 128) + "1",
		strings.Repeat("y", 128) + "2",
	}
	seen := map[string]string{}
	for _, id := range ids {
		got, err := SanitizeID(id)
		if err != nil {
			t.Fatalf("SanitizeID(%q): %v", id, err)
		}
		if prev, ok := seen[got]; ok {
			t.Fatalf("ids %q and %q both map to %q", prev, id, got)
		}
		seen[got] = id
	}
}

func TestImageStoreDistinctIDsKeepDistinctFiles(t *testing.T) {
	root := t.TempDir()
	s := NewImageStore(root)
	payload := base64.StdEncoding.EncodeToString(pngBytes)

	dotted, err := s.Save("a.b", payload, "image/png")
	if err != nil {
		t.Fatalf("Save(a.b): %v", err)
	}
	underscored, err := s.Save("a_b", payload, "image/png")
	if err != nil {
		t.Fatalf("Save(a_b): %v", err)
	}
	if dotted == underscored {
		t.Fatalf("both ids saved to %s", dotted)
	}

	if err := s.Remove(underscored); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(dotted))); err != nil {
		t.Fatalf("removing a_b deleted a.b's file: %v", err)
	}
}

func TestDecode(t *testing.T) {
	enc := base64.StdEncoding.EncodeToString(pngBytes)

	for _, payload := range []string{
		enc,
		"data:image/png;base64," + enc,
		strings.TrimRight(enc, "="),
	} {
		got, err := Decode(payload)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", payload, err)
		}
		if !bytes.Equal(got, pngBytes) {
			t.Errorf("Decode(%q) = %v", payload, got)
		}
	}

	if _, err := Decode("!!!not base64"); !apperrors.IsCode(err, apperrors.CodeImageDecodeFailed) {
		t.Errorf("expected decode_failed, got %v", err)
	}
	if _, err := Decode(""); !apperrors.IsCode(err, apperrors.CodeImageDecodeFailed) {
		t.Errorf("expected decode_failed for empty payload, got %v", err)
	}
}

func TestImageStoreSaveAndRemove(t *testing.T) {
	root := t.TempDir()
	store := NewImageStore(root)

	ref, err := store.Save("abc", base64.StdEncoding.EncodeToString(pngBytes), "image/png")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ref != ".cursor/voice-images/img_abc.png" {
		t.Errorf("ref = %q", ref)
	}
	full := filepath.Join(root, ".cursor", "voice-images", "img_abc.png")
	data, err := os.ReadFile(full)
	if err != nil {
		t.Fatalf("image not written: %v", err)
	}
	if !bytes.Equal(data, pngBytes) {
		t.Error("written bytes differ")
	}

	if err := store.Remove(ref); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(full); !os.IsNotExist(err) {
		t.Error("image still present after Remove")
	}
	if err := store.Remove(ref); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
}

func TestImageStoreRefusesForeignRefs(t *testing.T) {
	store := NewImageStore(t.TempDir())
	if err := store.Remove("../secret.txt"); err == nil {
		t.Error("expected refusal for path outside image dir")
	}
}

func TestImageStoreNoWorkspace(t *testing.T) {
	store := NewImageStore("")
	_, err := store.Save("a", base64.StdEncoding.EncodeToString(pngBytes), "image/png")
	if !apperrors.IsCode(err, apperrors.CodeWorkspaceMissing) {
		t.Errorf("err = %v, want workspace.missing", err)
	}
}

func TestInboxAppend(t *testing.T) {
	root := t.TempDir()
	inbox := NewInbox(root)
	inbox.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	if err := inbox.Append("first"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := inbox.Append("second"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, ".cursor", "voice-input.md"))
	if err != nil {
		t.Fatalf("read inbox: %v", err)
	}
	want := "\n<!-- Voice Input - 2026-03-04 05:06:07 -->\nfirst\n" +
		"\n<!-- Voice Input - 2026-03-04 05:06:07 -->\nsecond\n"
	if string(data) != want {
		t.Errorf("inbox = %q, want %q", data, want)
	}
}

func TestInboxNoWorkspace(t *testing.T) {
	if err := NewInbox("").Append("x"); !apperrors.IsCode(err, apperrors.CodeWorkspaceMissing) {
		t.Errorf("err = %v, want workspace.missing", err)
	}
}
