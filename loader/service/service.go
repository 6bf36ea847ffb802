// Package service runs the import pipeline: watch the source
// directory, extract and chunk each document, categorize it, embed the
// chunks and persist everything. Successful imports land in the
// archive, unprocessable documents in the bad directory.
package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"dms/category"
	"dms/config"
	"dms/loader/internal"
	"dms/model"
	"dms/pkg/log"
	"dms/store"
	"dms/types"
)

// DocumentExtractor is the extraction step seen by the service.
type DocumentExtractor interface {
	Extract(ctx context.Context, path string) (*types.DocumentContent, error)
}

type Service struct {
	cfg      config.Config
	store    store.DBStorer
	extract  DocumentExtractor
	catalog  *category.Engine
	embedder model.Embedder
	watcher  *Watcher

	imported atomic.Int64
	failed   atomic.Int64
}

func New(cfg config.Config, st store.DBStorer, extract DocumentExtractor, embedder model.Embedder) *Service {
	createDirectories(cfg.Loader.SourceDir, cfg.Loader.ArchiveDir, cfg.Loader.BadDir)
	return &Service{
		cfg:      cfg,
		store:    st,
		extract:  extract,
		catalog:  category.NewEngine(),
		embedder: embedder,
		watcher:  NewWatcher(cfg.Loader),
	}
}

// Run watches the source directory and imports files until a shutdown
// signal arrives.
func (s *Service) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fileChan := make(chan string, 10)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		s.watcher.Run(ctx, fileChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.processFiles(ctx, fileChan)
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	log.Info("received shutdown signal, shutting down gracefully")

	cancel()
	signal.Stop(sigch)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warnf("timeout waiting for workers to stop")
	}

	log.Infof("loader stopped, imported=%d failed=%d", s.Imported(), s.Failed())
}

func (s *Service) processFiles(ctx context.Context, fileChan <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-fileChan:
			if !ok {
				return
			}
			if err := s.ImportFile(ctx, path); err != nil {
				log.Errorf("import of %s failed: %v", path, err)
			}
			s.watcher.Done(path)
		}
	}
}

// ImportBatch imports the given files one after another. Unprocessable
// documents are skipped with a warning, any other error continues the
// batch too; the first context error aborts it. Returns how many files
// imported successfully.
func (s *Service) ImportBatch(ctx context.Context, paths []string) (int, error) {
	done := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := s.ImportFile(ctx, path); err != nil {
			log.Warnw("skipping document", "path", path, "error", err)
			continue
		}
		done++
	}
	return done, nil
}

// ImportFile runs the whole pipeline for one file. An unprocessable
// document is moved to the bad directory and the error returned; any
// transient failure (embedding, storage) leaves the file in place for
// a later retry.
func (s *Service) ImportFile(ctx context.Context, path string) error {
	doc, err := s.extract.Extract(ctx, path)
	if err != nil {
		s.failed.Add(1)
		if types.IsUnprocessable(err) {
			s.moveTo(path, s.cfg.Loader.BadDir)
		}
		return err
	}

	s.relabel(doc, path)

	cat := s.catalog.Categorize(doc.Text)
	log.Infow("document categorized",
		"path", doc.FilePath, "category", cat.PrimaryCategory, "confidence", cat.Confidence)

	chunks := internal.SplitDocument(doc, s.cfg.ChunkSize, s.cfg.Overlap)
	if err := s.embedChunks(ctx, chunks); err != nil {
		s.failed.Add(1)
		return fmt.Errorf("embed %s: %w", doc.FilePath, err)
	}

	// Delete-then-save keeps re-imports of the same path idempotent.
	if err := s.store.DeleteDocument(ctx, doc.FilePath); err != nil {
		s.failed.Add(1)
		return fmt.Errorf("delete previous version of %s: %w", doc.FilePath, err)
	}
	if err := s.store.SaveDocument(ctx, *doc, cat); err != nil {
		s.failed.Add(1)
		return fmt.Errorf("save document %s: %w", doc.FilePath, err)
	}
	if err := s.store.SaveChunks(ctx, chunks); err != nil {
		s.failed.Add(1)
		return fmt.Errorf("save chunks of %s: %w", doc.FilePath, err)
	}

	s.moveTo(path, s.cfg.Loader.ArchiveDir)
	s.imported.Add(1)
	log.Infow("document imported",
		"path", doc.FilePath,
		"pages", doc.PageCount,
		"chunks", len(chunks),
		"method", doc.Method,
		"took", doc.ProcessingTime)
	return nil
}

// Imported reports how many documents this service instance imported.
func (s *Service) Imported() int64 { return s.imported.Load() }

// Failed reports how many documents failed to import.
func (s *Service) Failed() int64 { return s.failed.Load() }

// relabel rewrites the document identity to be relative to the source
// directory, so it stays stable after the file moves to the archive.
func (s *Service) relabel(doc *types.DocumentContent, path string) {
	rel, err := filepath.Rel(s.cfg.Loader.SourceDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	doc.FilePath = filepath.ToSlash(rel)
	doc.Directory = internal.DirectoryLabel(doc.FilePath)
}

func (s *Service) embedChunks(ctx context.Context, chunks []types.TextChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	return nil
}

// moveTo copies the file into destDir under a date subdirectory and
// removes the original. Name collisions get a numeric suffix.
func (s *Service) moveTo(path, destDir string) {
	day := time.Now().Format("2006-01-02")
	dir := filepath.Join(destDir, day)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Errorf("error creating directory %s: %v", dir, err)
		return
	}

	destPath := filepath.Join(dir, filepath.Base(path))
	counter := 1
	for {
		if _, err := os.Stat(destPath); os.IsNotExist(err) {
			break
		}
		ext := filepath.Ext(path)
		base := strings.TrimSuffix(filepath.Base(path), ext)
		destPath = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, counter, ext))
		counter++
	}

	if err := copyFile(path, destPath); err != nil {
		log.Errorf("error moving %s to %s: %v", path, destPath, err)
		return
	}
	if err := os.Remove(path); err != nil {
		log.Warnf("error removing %s after move: %v", path, err)
	}
	log.Infof("file moved to %s", destPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func createDirectories(dirs ...string) {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Errorf("error creating directory %s: %v", dir, err)
		}
	}
}
