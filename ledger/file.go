package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/baas/sanitize"
)

// DefaultPathTemplate is where FileStore keeps one file per client.
const DefaultPathTemplate = "BFlog/%s.txt"

// FileStore keeps one file per client IP. The file holds the failure count
// as ASCII decimal; its modification time is the last failure.
type FileStore struct {
	dir     string
	pattern string // base name with a single %s for the IP
}

// NewFileStore creates a store from a path template such as "BFlog/%s.txt".
// The directory is created if missing.
func NewFileStore(template string) (*FileStore, error) {
	if strings.Count(template, "%s") != 1 {
		return nil, fmt.Errorf("ledger: path template %q must contain exactly one %%s", template)
	}
	dir, pattern := filepath.Split(template)
	if strings.Contains(dir, "%s") {
		return nil, fmt.Errorf("ledger: %%s must be in the file name of %q", template)
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ledger: mkdir %s: %w", dir, err)
	}
	return &FileStore{dir: filepath.Clean(dir), pattern: pattern}, nil
}

// Dir returns the directory holding the record files.
func (f *FileStore) Dir() string { return f.dir }

// CheckWritable verifies that records can be created in the store directory.
func (f *FileStore) CheckWritable() error {
	tmp, err := os.CreateTemp(f.dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("ledger: %s not writable: %w", f.dir, err)
	}
	name := tmp.Name()
	tmp.Close()
	return os.Remove(name)
}

func (f *FileStore) path(ip string) (string, error) {
	if err := validIP(ip); err != nil {
		return "", err
	}
	return sanitize.SafePath(f.dir, fmt.Sprintf(f.pattern, ip))
}

func (f *FileStore) Get(_ context.Context, ip string) (Record, bool, error) {
	p, err := f.path(ip)
	if err != nil {
		return Record{}, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("ledger: read %s: %w", p, err)
	}
	info, err := os.Stat(p)
	if err != nil {
		return Record{}, false, fmt.Errorf("ledger: stat %s: %w", p, err)
	}
	count, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		// A damaged file counts as one failure rather than none.
		count = 1
	}
	return Record{IP: ip, Count: count, Last: info.ModTime()}, true, nil
}

// Put writes the count through a temporary file and rename, then stamps the
// file's mtime with rec.Last.
func (f *FileStore) Put(_ context.Context, rec Record) error {
	p, err := f.path(rec.IP)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, ".attempt-*")
	if err != nil {
		return fmt.Errorf("ledger: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(strconv.Itoa(rec.Count)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ledger: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ledger: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ledger: rename %s: %w", p, err)
	}
	if err := os.Chtimes(p, rec.Last, rec.Last); err != nil {
		return fmt.Errorf("ledger: chtimes %s: %w", p, err)
	}
	return nil
}

func (f *FileStore) Delete(_ context.Context, ip string) error {
	p, err := f.path(ip)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ledger: remove %s: %w", p, err)
	}
	return nil
}

// Sweep removes record files last modified at or before cutoff.
func (f *FileStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	matches, err := filepath.Glob(filepath.Join(f.dir, strings.Replace(f.pattern, "%s", "*", 1)))
	if err != nil {
		return 0, fmt.Errorf("ledger: glob: %w", err)
	}
	n := 0
	for _, p := range matches {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		info, err := os.Stat(p)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(p); err == nil {
			n++
		}
	}
	return n, nil
}
