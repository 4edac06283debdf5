package keystore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/stegseal/stegseal-go/internal/atomicfile"
	"github.com/stegseal/stegseal-go/internal/crypto"
)

const fileExt = ".key"

// File stores one msgpack record per identity in a directory. File names are
// the SHA-256 of the identity, so identities never reach the filesystem.
type File struct {
	dir     string
	wrapper *Wrapper
	log     *slog.Logger

	// mu serializes read-modify-write in Put within this process.
	mu sync.Mutex
}

// NewFile opens a file store rooted at dir, creating it with mode 0700.
// wrapper may be nil, in which case private keys are stored in the clear.
func NewFile(dir string, wrapper *Wrapper, log *slog.Logger) (*File, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	if wrapper == nil {
		log.Warn("File key store has no master key, private keys are stored unencrypted",
			slog.String("dir", dir))
	}

	return &File{dir: dir, wrapper: wrapper, log: log}, nil
}

func (s *File) path(identity string) string {
	return filepath.Join(s.dir, objectName(identity)+fileExt)
}

func (s *File) read(identity string) (*record, error) {
	data, err := os.ReadFile(s.path(identity))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	r, err := unmarshalRecord(data)
	if err != nil {
		return nil, err
	}
	if r.Identity != identity {
		return nil, fmt.Errorf("%w: identity mismatch", ErrCorruptRecord)
	}
	return r, nil
}

// Get implements Store.
func (s *File) Get(_ context.Context, identity string) (*crypto.KeyPair, error) {
	r, err := s.read(identity)
	if err != nil {
		return nil, err
	}
	return r.keyPair(s.wrapper)
}

// Put implements Store.
func (s *File) Put(_ context.Context, identity string, kp *crypto.KeyPair) error {
	if err := checkPut(identity, kp); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := timeNow()
	if old, err := s.read(identity); err == nil {
		createdAt = old.CreatedAt
	}

	r, err := newRecord(s.wrapper, identity, kp, createdAt)
	if err != nil {
		return err
	}
	data, err := marshalRecord(r)
	if err != nil {
		return err
	}

	if err := atomicfile.Write(s.path(identity), data, 0600); err != nil {
		return err
	}

	s.log.Debug("Stored key pair in file",
		slog.String("path", s.path(identity)),
		slog.Bool("wrapped", r.Wrapped))
	return nil
}

// Delete implements Store.
func (s *File) Delete(_ context.Context, identity string) error {
	err := os.Remove(s.path(identity))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete key file: %w", err)
	}
	return nil
}

// List implements Store. Unreadable files are logged and skipped.
func (s *File) List(ctx context.Context) ([]Entry, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list key directory: %w", err)
	}

	var out []Entry
	for _, d := range dirents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), fileExt) || strings.HasPrefix(d.Name(), ".") {
			continue
		}

		path := filepath.Join(s.dir, d.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn("Skipping unreadable key file", slog.String("path", path), "err", err)
			continue
		}
		r, err := unmarshalRecord(data)
		if err != nil {
			s.log.Warn("Skipping corrupt key file", slog.String("path", path), "err", err)
			continue
		}
		e, err := r.entry()
		if err != nil {
			s.log.Warn("Skipping corrupt key file", slog.String("path", path), "err", err)
			continue
		}
		out = append(out, e)
	}

	sortEntries(out)
	return out, nil
}
