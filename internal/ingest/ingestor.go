package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mohammad-safakhou/coursechat/config"
	"github.com/mohammad-safakhou/coursechat/internal/telemetry"
	"github.com/mohammad-safakhou/coursechat/internal/vectorstore"
	"github.com/mohammad-safakhou/coursechat/models"
)

// Status reports what happened to one document.
type Status string

const (
	StatusIndexed          Status = "indexed"
	StatusSkippedDuplicate Status = "skipped_duplicate"
)

// Result summarizes one document ingestion.
type Result struct {
	CourseTitle string
	ChunksAdded int
	Status      Status
}

// BatchResult summarizes a folder ingestion. Failures are isolated per
// document and counted, never fatal for the batch.
type BatchResult struct {
	CoursesAdded int
	ChunksAdded  int
	Skipped      int
	Failed       int
}

// Ingestor parses course documents, chunks their lesson bodies and loads
// both catalog metadata and content chunks into the vector index.
type Ingestor struct {
	store   vectorstore.Store
	chunker *Chunker
	logger  *log.Logger
}

func New(store vectorstore.Store, cfg config.IngestConfig, logger *log.Logger) *Ingestor {
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	return &Ingestor{
		store:   store,
		chunker: NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		logger:  logger,
	}
}

// Ingest parses one document and indexes it. Re-ingesting a course whose
// title is already in the catalog is a no-op: the existing course is
// never overwritten implicitly.
func (ing *Ingestor) Ingest(ctx context.Context, r io.Reader) (Result, error) {
	course, segments, err := parseDocument(r)
	if err != nil {
		return Result{}, err
	}

	exists, err := ing.store.CourseExists(ctx, course.Title)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return Result{CourseTitle: course.Title, Status: StatusSkippedDuplicate}, nil
	}

	var chunks []models.CourseChunk
	index := 0
	for _, seg := range segments {
		for _, piece := range ing.chunker.Chunk(seg.text) {
			chunks = append(chunks, models.CourseChunk{
				Content:      piece,
				CourseTitle:  course.Title,
				LessonNumber: seg.lesson,
				ChunkIndex:   index,
			})
			index++
		}
	}

	// The catalog entry is written last: the duplicate check reads the
	// catalog, so a failure while adding chunks must leave no entry
	// behind or retrying the document would skip it forever.
	if err := ing.store.AddChunks(ctx, chunks); err != nil {
		return Result{}, fmt.Errorf("adding chunks for %q: %w", course.Title, err)
	}
	if err := ing.store.AddCourse(ctx, course); err != nil {
		return Result{}, fmt.Errorf("adding course %q: %w", course.Title, err)
	}

	telemetry.CoursesIngested.Inc()
	telemetry.ChunksIngested.Add(float64(len(chunks)))
	return Result{CourseTitle: course.Title, ChunksAdded: len(chunks), Status: StatusIndexed}, nil
}

// IngestFile ingests a single document file.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ing.Ingest(ctx, f)
}

// IngestFolder ingests every .txt and .md file in dir. Malformed
// documents are logged and skipped; the batch always runs to the end.
func (ing *Ingestor) IngestFolder(ctx context.Context, dir string) (BatchResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return BatchResult{}, fmt.Errorf("reading docs folder: %w", err)
	}

	var batch BatchResult
	for _, entry := range entries {
		if entry.IsDir() || !isCourseFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		res, err := ing.IngestFile(ctx, path)
		switch {
		case errors.Is(err, ErrMalformedDocument):
			ing.logger.Printf("skipping %s: %v", entry.Name(), err)
			telemetry.DocumentsSkipped.WithLabelValues("malformed").Inc()
			batch.Failed++
		case err != nil:
			// Index unavailability is fatal for the document but the
			// batch still continues; the caller sees the totals.
			ing.logger.Printf("failed to ingest %s: %v", entry.Name(), err)
			batch.Failed++
		case res.Status == StatusSkippedDuplicate:
			ing.logger.Printf("skipping %s: course %q already indexed", entry.Name(), res.CourseTitle)
			telemetry.DocumentsSkipped.WithLabelValues("duplicate").Inc()
			batch.Skipped++
		default:
			ing.logger.Printf("indexed %q (%d chunks)", res.CourseTitle, res.ChunksAdded)
			batch.CoursesAdded++
			batch.ChunksAdded += res.ChunksAdded
		}
	}
	return batch, nil
}

func isCourseFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md":
		return true
	}
	return false
}
