package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atelierhq/roomora-backend/internal/platform/envutil"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
)

// Store writes rendered design images to local disk and hands back stable
// URLs. Workers and the HTTP layer share the same directory; swap this for
// an object store without touching callers.
type Store struct {
	log     *logger.Logger
	dir     string
	baseURL string
}

func NewStore(log *logger.Logger) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	dir := envutil.Str("ARTIFACT_DIR", "./artifacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: create dir %s: %w", dir, err)
	}
	return &Store{
		log:     log.With("service", "ArtifactStore"),
		dir:     dir,
		baseURL: strings.TrimRight(envutil.Str("ARTIFACT_BASE_URL", "/artifacts"), "/"),
	}, nil
}

// Dir is the root directory artifacts are written under.
func (s *Store) Dir() string { return s.dir }

// Put stores image bytes under the project and returns the serving URL.
// Content-addressed names make re-saves of identical bytes idempotent.
func (s *Store) Put(projectID string, data []byte, mediaType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("artifacts: empty payload")
	}
	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:16]) + extFor(mediaType)
	rel := filepath.Join(sanitizeID(projectID), name)
	abs := filepath.Join(s.dir, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("artifacts: mkdir: %w", err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", fmt.Errorf("artifacts: write: %w", err)
	}
	return s.baseURL + "/" + filepath.ToSlash(rel), nil
}

// RemoveProject deletes every artifact saved for the project. Best-effort.
func (s *Store) RemoveProject(projectID string) error {
	target := filepath.Join(s.dir, sanitizeID(projectID))
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("artifacts: remove %s: %w", target, err)
	}
	return nil
}

func extFor(mediaType string) string {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func sanitizeID(id string) string {
	id = strings.TrimSpace(id)
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
