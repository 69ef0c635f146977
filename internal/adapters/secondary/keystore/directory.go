// Package keystore implements the local keystore source over a directory of
// certificate files.
package keystore

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sufield/certkeeper/internal/adapters/secondary/certdata"
	"github.com/sufield/certkeeper/internal/core/domain"
	"github.com/sufield/certkeeper/internal/core/errors"
)

// Extensions scanned by DirectoryStore.
var certificateExtensions = map[string]bool{
	".pem": true,
	".crt": true,
	".cer": true,
	".der": true,
	".pfx": true,
	".p12": true,
}

// DirectoryStore is a read-only keystore backed by a directory. The directory
// is rescanned on every lookup so certificates dropped in by an operator are
// picked up on the next refresh cycle.
type DirectoryStore struct {
	dir      string
	password string
	logger   *slog.Logger
}

// NewDirectoryStore creates a keystore over dir. password unlocks PKCS#12
// files and may be empty.
func NewDirectoryStore(dir, password string, logger *slog.Logger) (*DirectoryStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, &errors.ValidationError{
			Field:   "keystore.directory",
			Value:   dir,
			Message: "keystore directory cannot be empty",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &DirectoryStore{
		dir:      filepath.Clean(dir),
		password: password,
		logger:   logger,
	}, nil
}

// FindByThumbprint implements ports.LocalKeystoreSource. Files are visited in
// lexical order and the first match wins. Files that cannot be parsed are
// skipped.
func (s *DirectoryStore) FindByThumbprint(ctx context.Context, thumbprint string) (*domain.KeyMaterial, bool, error) {
	want := domain.NormalizeThumbprint(thumbprint)
	if want == "" {
		return nil, false, nil
	}

	files, err := s.files()
	if err != nil {
		return nil, false, errors.NewDomainError(errors.ErrSourceUnavailable, err)
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		material, err := s.read(path)
		if err != nil {
			s.logger.Debug("Skipping unreadable keystore file", "path", path, "error", err)
			continue
		}

		if domain.Thumbprint(material.Certificate) == want {
			s.logger.Debug("Certificate found in keystore", "thumbprint", want, "path", path)
			return material, true, nil
		}
		for _, cert := range material.Chain {
			if domain.Thumbprint(cert) == want {
				return &domain.KeyMaterial{Certificate: cert}, true, nil
			}
		}
	}

	return nil, false, nil
}

func (s *DirectoryStore) files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore directory %s: %w", s.dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if entry.Type()&fs.ModeSymlink != 0 && !s.isRegular(entry.Name()) {
			continue
		}
		if !certificateExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(s.dir, entry.Name()))
	}

	sort.Strings(files)
	return files, nil
}

func (s *DirectoryStore) isRegular(name string) bool {
	info, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil && info.Mode().IsRegular()
}

func (s *DirectoryStore) read(path string) (*domain.KeyMaterial, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return certdata.Decode(data, s.password)
}
