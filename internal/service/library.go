package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"ragkb/internal/domain"
	"ragkb/internal/filestore"
)

// FileListing reconciles a KB's files on disk against its indexed vectors.
type FileListing struct {
	KBName   string   `json:"kb_name"`
	Files    []string `json:"files"`
	Indexed  []string `json:"indexed"`
	Orphaned []string `json:"orphaned_vectors"` // indexed but absent on disk
	Missing  []string `json:"missing_vectors"`  // on disk but not indexed
}

// Library manages knowledge bases and their files: creation, deletion,
// listing and orphaned-vector maintenance.
type Library struct {
	store  domain.VectorStore
	files  *filestore.Store
	logger *logrus.Logger
}

// NewLibrary creates the KB/file management service.
func NewLibrary(store domain.VectorStore, files *filestore.Store, logger *logrus.Logger) *Library {
	if logger == nil {
		logger = logrus.New()
	}
	return &Library{store: store, files: files, logger: logger}
}

// CreateKB creates the collection; creating an existing KB is a no-op.
func (s *Library) CreateKB(ctx context.Context, kbName string) error {
	if err := s.store.EnsureKB(ctx, kbName); err != nil {
		return fmt.Errorf("create kb %q: %w", kbName, err)
	}
	return nil
}

// ListKBs returns all knowledge base names.
func (s *Library) ListKBs(ctx context.Context) ([]string, error) {
	return s.store.ListKBs(ctx)
}

// DeleteKB removes the collection and the KB's upload directory.
func (s *Library) DeleteKB(ctx context.Context, kbName string) error {
	if err := s.store.DeleteKB(ctx, kbName); err != nil {
		return fmt.Errorf("delete kb %q: %w", kbName, err)
	}
	if err := s.files.DeleteKB(kbName); err != nil {
		return fmt.Errorf("delete kb %q uploads: %w", kbName, err)
	}
	s.logger.WithField("kb", kbName).Info("deleted knowledge base")
	return nil
}

// ListFiles returns the KB's disk files and indexed filenames, with the
// discrepancies in both directions.
func (s *Library) ListFiles(ctx context.Context, kbName string) (*FileListing, error) {
	diskFiles, err := s.files.List(kbName)
	if err != nil {
		return nil, fmt.Errorf("list files in kb %q: %w", kbName, err)
	}
	indexed, err := s.store.ListFilenames(ctx, kbName)
	if err != nil {
		return nil, fmt.Errorf("list indexed files in kb %q: %w", kbName, err)
	}
	onDisk := make(map[string]struct{}, len(diskFiles))
	for _, f := range diskFiles {
		onDisk[f] = struct{}{}
	}
	inStore := make(map[string]struct{}, len(indexed))
	for _, f := range indexed {
		inStore[f] = struct{}{}
	}
	listing := &FileListing{
		KBName:   kbName,
		Files:    diskFiles,
		Indexed:  indexed,
		Orphaned: []string{},
		Missing:  []string{},
	}
	for _, f := range indexed {
		if _, ok := onDisk[f]; !ok {
			listing.Orphaned = append(listing.Orphaned, f)
		}
	}
	for _, f := range diskFiles {
		if _, ok := inStore[f]; !ok {
			listing.Missing = append(listing.Missing, f)
		}
	}
	return listing, nil
}

// DeleteFile removes a file from disk and all its vectors from the store.
// Returns whether the file existed on disk and how many vectors went away.
func (s *Library) DeleteFile(ctx context.Context, filename, kbName string) (bool, int, error) {
	existed, err := s.files.Delete(filename, kbName)
	if err != nil {
		return false, 0, fmt.Errorf("delete file %q from kb %q: %w", filename, kbName, err)
	}
	deleted, err := s.store.DeleteByFilename(ctx, kbName, filename)
	if err != nil {
		return existed, 0, fmt.Errorf("delete vectors of %q from kb %q: %w", filename, kbName, err)
	}
	s.logger.WithFields(logrus.Fields{"kb": kbName, "filename": filename, "vectors": deleted, "on_disk": existed}).
		Info("deleted file")
	return existed, deleted, nil
}

// CleanupOrphaned deletes the vectors of every filename that is indexed in
// the store but no longer present on disk. Returns the cleaned filenames
// and the total vectors removed.
func (s *Library) CleanupOrphaned(ctx context.Context, kbName string) ([]string, int, error) {
	listing, err := s.ListFiles(ctx, kbName)
	if err != nil {
		return nil, 0, fmt.Errorf("cleanup orphaned vectors in kb %q: %w", kbName, err)
	}
	total := 0
	for _, filename := range listing.Orphaned {
		deleted, err := s.store.DeleteByFilename(ctx, kbName, filename)
		if err != nil {
			return listing.Orphaned, total, fmt.Errorf("cleanup %q in kb %q: %w", filename, kbName, err)
		}
		total += deleted
	}
	if len(listing.Orphaned) > 0 {
		s.logger.WithFields(logrus.Fields{"kb": kbName, "files": len(listing.Orphaned), "vectors": total}).
			Info("cleaned up orphaned vectors")
	}
	return listing.Orphaned, total, nil
}
