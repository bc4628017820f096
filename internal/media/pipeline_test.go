package media

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"omnigate/pkg/models"
)

// pngHeader is a minimal valid PNG signature, enough for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13}

var gifHeader = []byte("GIF89a\x01\x00\x01\x00")

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	return NewPipeline(t.TempDir(), "https://media.example.com/uploads", nil)
}

func TestValidateAcceptsImage(t *testing.T) {
	p := newTestPipeline(t)

	mime, err := p.Validate(bytes.NewReader(pngHeader), int64(len(pngHeader)), "photo.png", models.MessageImage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mime != "image/png" {
		t.Errorf("sniffed mime = %q, expected image/png", mime)
	}
}

func TestValidateRejectsOversizedFile(t *testing.T) {
	p := newTestPipeline(t)

	// 6MB declared as image: rejected before sniffing
	_, err := p.Validate(bytes.NewReader(pngHeader), 6<<20, "photo.png", models.MessageImage)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, expected ValidationError", err)
	}
	if !strings.Contains(verr.Reason, "file too large") {
		t.Errorf("reason = %q, expected file too large", verr.Reason)
	}
}

func TestValidateRejectsSpoofedContent(t *testing.T) {
	p := newTestPipeline(t)

	// Plain text content with an allowed extension and declared image type:
	// the sniffed MIME decides, not the claim.
	content := []byte("this is definitely not a png")
	_, err := p.Validate(bytes.NewReader(content), int64(len(content)), "fake.png", models.MessageImage)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, expected ValidationError", err)
	}
	if !strings.Contains(verr.Reason, "content type") {
		t.Errorf("reason = %q, expected content type rejection", verr.Reason)
	}
}

func TestValidateRejectsBadExtension(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.Validate(bytes.NewReader(pngHeader), int64(len(pngHeader)), "photo.exe", models.MessageImage)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, expected ValidationError", err)
	}
	if !strings.Contains(verr.Reason, "extension") {
		t.Errorf("reason = %q, expected extension rejection", verr.Reason)
	}
}

func TestValidateRejectsUnknownMediaType(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.Validate(bytes.NewReader(pngHeader), int64(len(pngHeader)), "photo.png", models.MessageType("hologram"))
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, expected ValidationError", err)
	}
}

func TestValidateDistinctReasons(t *testing.T) {
	p := newTestPipeline(t)

	tests := []struct {
		name      string
		content   []byte
		size      int64
		filename  string
		mediaType models.MessageType
		fragment  string
	}{
		{"size", pngHeader, 10 << 20, "a.png", models.MessageImage, "file too large"},
		{"mime", []byte("plain text"), 10, "a.png", models.MessageImage, "content type"},
		{"extension", pngHeader, int64(len(pngHeader)), "a.tiff", models.MessageImage, "extension"},
		{"media type", pngHeader, int64(len(pngHeader)), "a.png", models.MessageType("nope"), "unknown media type"},
	}

	for _, test := range tests {
		_, err := p.Validate(bytes.NewReader(test.content), test.size, test.filename, test.mediaType)
		if err == nil || !strings.Contains(err.Error(), test.fragment) {
			t.Errorf("%s: error = %v, expected to contain %q", test.name, err, test.fragment)
		}
	}
}

func TestStoreReturnsPathAndPublicURL(t *testing.T) {
	dir := t.TempDir()
	p := NewPipeline(dir, "https://media.example.com/uploads/", nil)

	staged, err := p.Store(bytes.NewReader(gifHeader), "owner-1", "fun.gif", "image/gif", models.MessageImage)
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}

	if _, err := os.Stat(staged.Path); err != nil {
		t.Errorf("staged file missing: %v", err)
	}
	if !strings.HasPrefix(staged.PublicURL, "https://media.example.com/uploads/owner-1/") {
		t.Errorf("public URL = %q", staged.PublicURL)
	}
	if !strings.HasSuffix(staged.Filename, ".gif") {
		t.Errorf("filename = %q, expected .gif suffix", staged.Filename)
	}
	if staged.Size != int64(len(gifHeader)) {
		t.Errorf("size = %d, expected %d", staged.Size, len(gifHeader))
	}
}

func TestStoreConcurrentSameName(t *testing.T) {
	dir := t.TempDir()
	p := NewPipeline(dir, "https://media.example.com/uploads", nil)

	const workers = 8
	paths := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			staged, err := p.Store(bytes.NewReader(pngHeader), "owner-1", "same.png", "image/png", models.MessageImage)
			if err != nil {
				t.Errorf("Store error: %v", err)
				return
			}
			paths[i] = staged.Path
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, path := range paths {
		if path == "" {
			continue
		}
		if seen[path] {
			t.Fatalf("duplicate staged path %q", path)
		}
		seen[path] = true
	}
	if len(seen) != workers {
		t.Errorf("expected %d distinct paths, got %d", workers, len(seen))
	}
}

func TestStoreBase64RoundTrip(t *testing.T) {
	p := NewPipeline(t.TempDir(), "https://media.example.com/uploads", nil)

	staged, err := p.Store(bytes.NewReader(pngHeader), "owner-2", "pic.png", "image/png", models.MessageImage)
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}

	encoded, err := staged.Base64()
	if err != nil {
		t.Fatalf("Base64 error: %v", err)
	}
	if encoded == "" {
		t.Error("empty base64 payload")
	}
}

type fakeMirror struct {
	fail bool
	keys []string
}

func (m *fakeMirror) Upload(localPath, key, contentType string) (string, error) {
	if m.fail {
		return "", errors.New("bucket unreachable")
	}
	m.keys = append(m.keys, key)
	return "https://cdn.example.com/" + key, nil
}

func TestStoreMirrorRewritesURL(t *testing.T) {
	mirror := &fakeMirror{}
	p := NewPipeline(t.TempDir(), "https://media.example.com/uploads", mirror)

	staged, err := p.Store(bytes.NewReader(pngHeader), "owner-3", "pic.png", "image/png", models.MessageImage)
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}
	if !strings.HasPrefix(staged.PublicURL, "https://cdn.example.com/owner-3/media/") {
		t.Errorf("public URL = %q, expected mirrored URL", staged.PublicURL)
	}
	if len(mirror.keys) != 1 {
		t.Errorf("mirror received %d uploads, expected 1", len(mirror.keys))
	}
}

func TestStoreMirrorFailureKeepsLocalURL(t *testing.T) {
	p := NewPipeline(t.TempDir(), "https://media.example.com/uploads", &fakeMirror{fail: true})

	staged, err := p.Store(bytes.NewReader(pngHeader), "owner-4", "pic.png", "image/png", models.MessageImage)
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}
	if !strings.HasPrefix(staged.PublicURL, "https://media.example.com/uploads/owner-4/") {
		t.Errorf("public URL = %q, expected local URL fallback", staged.PublicURL)
	}
	if filepath.Dir(staged.Path) == "" {
		t.Error("missing local path")
	}
}
