package catalog

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const lockRetryDelay = 50 * time.Millisecond

// FileStore reads and writes the catalog and archive files. Every write holds
// an exclusive lock shared with other processes and re-reads the files under
// it, so concurrent refreshes never lose each other's records.
type FileStore struct {
	path        string
	archivePath string

	mu     sync.Mutex
	lock   *flock.Flock
	log    *zap.Logger
	rename func(oldpath, newpath string) error
}

// NewFileStore creates a store for the catalog at path and the archive at
// archivePath. The lock file sits next to the catalog.
func NewFileStore(path, archivePath string) *FileStore {
	return &FileStore{
		path:        path,
		archivePath: archivePath,
		lock:        flock.New(path + ".lock"),
		log:         zap.L().With(zap.String("component", "catalog.store")),
		rename:      os.Rename,
	}
}

// Path returns the catalog file path.
func (s *FileStore) Path() string { return s.path }

// ArchivePath returns the archive file path.
func (s *FileStore) ArchivePath() string { return s.archivePath }

// Load reads the catalog without taking the write lock. A missing file is an
// empty catalog.
func (s *FileStore) Load(_ context.Context) ([]Entry, error) {
	return readEntries(s.path)
}

// LoadArchive reads the archive. A missing file is an empty archive.
func (s *FileStore) LoadArchive(_ context.Context) ([]Entry, error) {
	return readEntries(s.archivePath)
}

// Update applies fn to the current catalog under the lock and writes the
// result atomically.
func (s *FileStore) Update(ctx context.Context, fn func([]Entry) ([]Entry, error)) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := readEntries(s.path)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	data, err := Encode(next)
	if err != nil {
		return err
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.log.Debug("catalog written", zap.String("path", s.path), zap.Int("records", len(next)))
	return nil
}

// UpdateBoth applies fn to the catalog and archive under the lock. Both files
// are read before anything is written; the archive is replaced first so a
// failure between the two renames can only leave a record in both files,
// which the next sweep resolves.
func (s *FileStore) UpdateBoth(ctx context.Context, fn func(catalog, archive []Entry) ([]Entry, []Entry, error)) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	cat, err := readEntries(s.path)
	if err != nil {
		return err
	}
	arc, err := readEntries(s.archivePath)
	if err != nil {
		return err
	}
	nextCat, nextArc, err := fn(cat, arc)
	if err != nil {
		return err
	}
	catData, err := Encode(nextCat)
	if err != nil {
		return err
	}
	arcData, err := Encode(nextArc)
	if err != nil {
		return err
	}

	prevArc, err := os.ReadFile(s.archivePath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "catalog: read %s", s.archivePath)
	}
	arcExisted := err == nil

	arcTmp, err := stage(s.archivePath, arcData)
	if err != nil {
		return err
	}
	catTmp, err := stage(s.path, catData)
	if err != nil {
		_ = os.Remove(arcTmp)
		return err
	}
	if err := s.rename(arcTmp, s.archivePath); err != nil {
		_ = os.Remove(arcTmp)
		_ = os.Remove(catTmp)
		return eris.Wrapf(err, "catalog: replace %s", s.archivePath)
	}
	if err := s.rename(catTmp, s.path); err != nil {
		_ = os.Remove(catTmp)
		restoreErr := s.restore(s.archivePath, prevArc, arcExisted)
		s.log.Error("catalog replace failed after archive was written",
			zap.String("catalog", s.path),
			zap.String("archive", s.archivePath),
			zap.Bool("archive_restored", restoreErr == nil),
			zap.NamedError("restore_error", restoreErr),
			zap.Error(err),
		)
		return eris.Wrapf(err, "catalog: replace %s", s.path)
	}
	s.log.Debug("catalog and archive written",
		zap.Int("records", len(nextCat)),
		zap.Int("archived", len(nextArc)),
	)
	return nil
}

func (s *FileStore) acquire(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.mu.Unlock()
			return nil, eris.Wrapf(err, "catalog: create %s", dir)
		}
	}
	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		s.mu.Unlock()
		if err == nil {
			err = ctx.Err()
		}
		return nil, eris.Wrapf(err, "catalog: lock %s", s.lock.Path())
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			s.log.Warn("catalog unlock failed", zap.Error(err))
		}
		s.mu.Unlock()
	}, nil
}

func readEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	entries, err := Decode(data)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: %s", path)
	}
	return entries, nil
}

// stage writes data to a synced temp file beside path and returns its name.
// restore puts back a file's previous contents, or removes it when it did
// not exist before.
func (s *FileStore) restore(path string, prev []byte, existed bool) error {
	if !existed {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return eris.Wrapf(err, "catalog: remove %s", path)
		}
		return nil
	}
	tmp, err := stage(path, prev)
	if err != nil {
		return err
	}
	if err := s.rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrapf(err, "catalog: restore %s", path)
	}
	return nil
}

func stage(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "catalog: create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", eris.Wrapf(err, "catalog: temp file for %s", path)
	}
	name := tmp.Name()
	fail := func(err error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", eris.Wrapf(err, "catalog: write %s", name)
	}
	if _, err := tmp.Write(data); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", eris.Wrapf(err, "catalog: close %s", name)
	}
	return name, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := stage(path, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrapf(err, "catalog: replace %s", path)
	}
	return nil
}
