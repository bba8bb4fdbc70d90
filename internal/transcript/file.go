package transcript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const fileTimestampLayout = "2006-01-02_15-04-05"

// FileStore writes each transcript to its own text file under dir.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: strings.TrimSpace(dir)}
}

// Path returns where t will be written: <dir>/<local timestamp>_<author>.txt.
func (s *FileStore) Path(t Transcript) string {
	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	name := fmt.Sprintf("%s_%s.txt", created.Local().Format(fileTimestampLayout), safeFileComponent(t.Author))
	return filepath.Join(s.dir, name)
}

func (s *FileStore) Save(_ context.Context, t Transcript) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}
	path := s.Path(t)
	if err := os.WriteFile(path, []byte(t.Prompt), 0o644); err != nil {
		return fmt.Errorf("write transcript %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func safeFileComponent(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, v)
}
