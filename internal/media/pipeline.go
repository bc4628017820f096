// Package media validates and stages outbound attachments. A staged file
// lives under an owner-scoped directory and is referenced both by local path
// (for providers that read and base64-encode content) and by public URL
// (for providers that need a fetchable reference).
package media

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"omnigate/pkg/models"
)

// StagedMedia is the transient artifact produced by one Store call. The
// stored file outlives the send operation; the struct does not.
type StagedMedia struct {
	Path         string
	PublicURL    string
	Filename     string
	OriginalName string
	MimeType     string
	Size         int64
	MediaType    models.MessageType
}

// Base64 reads the staged file and returns its base64-encoded content, for
// providers that carry media inline.
func (m *StagedMedia) Base64() (string, error) {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read staged media: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Mirror copies a staged file to remote storage and returns a public URL.
type Mirror interface {
	Upload(localPath, key, contentType string) (string, error)
}

// Pipeline validates and stores media files.
type Pipeline struct {
	baseDir string
	baseURL string
	mirror  Mirror
}

// NewPipeline creates a pipeline rooted at baseDir. baseURL is the
// path-mapped public prefix an external web server serves baseDir under.
// mirror is optional remote storage; nil keeps files local only.
func NewPipeline(baseDir, baseURL string, mirror Mirror) *Pipeline {
	return &Pipeline{
		baseDir: baseDir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		mirror:  mirror,
	}
}

const (
	maxImageSize    = 5 << 20
	maxAudioSize    = 16 << 20
	maxVideoSize    = 16 << 20
	maxDocumentSize = 100 << 20
	maxStickerSize  = 500 << 10
)

var sizeLimits = map[models.MessageType]int64{
	models.MessageImage:    maxImageSize,
	models.MessageAudio:    maxAudioSize,
	models.MessageVideo:    maxVideoSize,
	models.MessageDocument: maxDocumentSize,
	models.MessageSticker:  maxStickerSize,
}

var allowedMimes = map[models.MessageType][]string{
	models.MessageImage:    {"image/jpeg", "image/png", "image/gif", "image/webp"},
	models.MessageAudio:    {"audio/mpeg", "audio/ogg", "application/ogg", "audio/wav", "audio/mp4", "audio/wave", "audio/x-wav"},
	models.MessageVideo:    {"video/mp4", "video/webm", "video/avi"},
	models.MessageDocument: {"application/pdf", "application/zip", "text/plain", "application/msword", "text/csv"},
	models.MessageSticker:  {"image/webp"},
}

var allowedExtensions = map[models.MessageType][]string{
	models.MessageImage:    {".jpg", ".jpeg", ".png", ".gif", ".webp"},
	models.MessageAudio:    {".mp3", ".ogg", ".opus", ".wav", ".m4a"},
	models.MessageVideo:    {".mp4", ".webm", ".avi"},
	models.MessageDocument: {".pdf", ".zip", ".txt", ".csv", ".doc", ".docx", ".xls", ".xlsx"},
	models.MessageSticker:  {".webp"},
}

// Validate enforces the per-media-type size bound, the MIME allow-list and
// the extension allow-list. The MIME type is sniffed from file content and
// never trusted from client metadata. Returns the sniffed MIME type.
func (p *Pipeline) Validate(f io.ReadSeeker, size int64, filename string, mediaType models.MessageType) (string, error) {
	limit, ok := sizeLimits[mediaType]
	if !ok {
		return "", &models.ValidationError{Field: "media_type", Reason: fmt.Sprintf("unknown media type %q", mediaType)}
	}
	if size > limit {
		return "", &models.ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("file too large: %d bytes exceeds the %d byte limit for %s", size, limit, mediaType),
		}
	}

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content detection: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind file: %w", err)
	}

	sniffed := http.DetectContentType(buf[:n])
	// DetectContentType may append a charset parameter
	if idx := strings.IndexByte(sniffed, ';'); idx >= 0 {
		sniffed = strings.TrimSpace(sniffed[:idx])
	}
	if !contains(allowedMimes[mediaType], sniffed) {
		return "", &models.ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("content type %q is not allowed for %s", sniffed, mediaType),
		}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !contains(allowedExtensions[mediaType], ext) {
		return "", &models.ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("file extension %q is not allowed for %s", ext, mediaType),
		}
	}

	return sniffed, nil
}

// Store persists a validated file under the owner's directory and returns
// the staged artifact. Filenames combine a random component with a
// nanosecond timestamp so concurrent uploads from the same owner never
// collide; the file is created with O_EXCL so an unlikely collision fails
// loudly instead of overwriting.
func (p *Pipeline) Store(f io.Reader, ownerID, originalName, mimeType string, mediaType models.MessageType) (*StagedMedia, error) {
	dir := filepath.Join(p.baseDir, ownerID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	name := fmt.Sprintf("%s_%d%s", uuid.New().String(), time.Now().UnixNano(), ext)
	path := filepath.Join(dir, name)

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create staged file: %w", err)
	}
	written, err := io.Copy(out, f)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write staged file: %w", err)
	}

	publicURL := fmt.Sprintf("%s/%s/%s", p.baseURL, ownerID, name)
	if p.mirror != nil {
		key := fmt.Sprintf("%s/media/%s", ownerID, name)
		if mirrored, err := p.mirror.Upload(path, key, mimeType); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Media mirror upload failed, serving local URL")
		} else {
			publicURL = mirrored
		}
	}

	return &StagedMedia{
		Path:         path,
		PublicURL:    publicURL,
		Filename:     name,
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         written,
		MediaType:    mediaType,
	}, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
