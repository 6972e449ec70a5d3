package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"coursetutor/internal/ai"
	"coursetutor/internal/blob"
	"coursetutor/internal/chunker"
	"coursetutor/internal/extract"
	"coursetutor/internal/model"
)

const defaultMaxBlobBytes = 64 << 20

type IngestStatus string

const (
	IngestNoContent IngestStatus = "NO_CONTENT"
	IngestIndexed   IngestStatus = "INDEXED"
	IngestPartial   IngestStatus = "PARTIAL"
	IngestFailed    IngestStatus = "FAILED"
	IngestSkipped   IngestStatus = "SKIPPED"
)

type IngestResult struct {
	SourceType      model.SourceType `json:"source_type"`
	SourceID        uint             `json:"source_id"`
	Title           string           `json:"title"`
	Status          IngestStatus     `json:"status"`
	ChunksAttempted int              `json:"chunks_attempted"`
	ChunksIndexed   int              `json:"chunks_indexed"`
	Error           string           `json:"error,omitempty"`
}

type CourseReport struct {
	CourseID  uint           `json:"course_id"`
	Results   []IngestResult `json:"results"`
	Cancelled bool           `json:"cancelled"`
}

// Count returns how many items finished with status.
func (r *CourseReport) Count(status IngestStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

type IngestionService struct {
	content  ContentSource
	blobs    blob.Store
	chunks   ChunkWriter
	embedder ai.Embedder
	cfg      RetrievalConfig
	limiter  *rate.Limiter
	locks    *keyedMutex
	logger   *zap.Logger

	maxBlobBytes int64
}

func NewIngestionService(
	content ContentSource,
	blobs blob.Store,
	chunks ChunkWriter,
	embedder ai.Embedder,
	cfg RetrievalConfig,
	logger *zap.Logger,
) *IngestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	burst := 1
	if cfg.EmbedRatePerSec > 0 {
		limit = rate.Limit(cfg.EmbedRatePerSec)
		burst = max(1, int(cfg.EmbedRatePerSec))
	}
	return &IngestionService{
		content:  content,
		blobs:    blobs,
		chunks:   chunks,
		embedder: embedder,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, burst),
		locks:    newKeyedMutex(),
		logger:   logger.Named("ingestion"),

		maxBlobBytes: defaultMaxBlobBytes,
	}
}

// sourceItem is the part of a content item that ingestion needs.
type sourceItem struct {
	sourceType model.SourceType
	sourceID   uint
	courseID   *uint
	title      string
	inline     string
	handle     string
	mimeType   string
}

func (s *IngestionService) IngestMaterial(ctx context.Context, id uint) (*IngestResult, error) {
	return s.IngestSource(ctx, model.SourceMaterial, id)
}

func (s *IngestionService) IngestLesson(ctx context.Context, id uint) (*IngestResult, error) {
	return s.IngestSource(ctx, model.SourceLesson, id)
}

func (s *IngestionService) IngestEbook(ctx context.Context, id uint) (*IngestResult, error) {
	return s.IngestSource(ctx, model.SourceEbook, id)
}

// IngestSource rebuilds the index of one content item. A NoContent result is
// returned without error and leaves any previous index in place.
func (s *IngestionService) IngestSource(ctx context.Context, sourceType model.SourceType, id uint) (*IngestResult, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	item, err := s.loadItem(ctx, sourceType, id)
	if err != nil {
		return nil, err
	}
	res, err := s.ingestItem(ctx, item)
	return &res, err
}

// IngestCourse indexes every material and lesson of a course. A failing item
// is recorded in the report and never stops the others. Once ctx is done no
// new item is started; the report then carries SKIPPED entries.
func (s *IngestionService) IngestCourse(ctx context.Context, courseID uint) (*CourseReport, error) {
	if courseID == 0 {
		return nil, ErrInvalidInput
	}
	materials, err := s.content.ListMaterialsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	lessons, err := s.content.ListLessonsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	items := make([]sourceItem, 0, len(materials)+len(lessons))
	for i := range materials {
		items = append(items, materialItem(&materials[i]))
	}
	for i := range lessons {
		items = append(items, lessonItem(&lessons[i]))
	}

	report := &CourseReport{CourseID: courseID, Results: make([]IngestResult, len(items))}
	var cancelled atomic.Bool
	var g errgroup.Group
	g.SetLimit(max(1, s.cfg.CourseParallelism))
	for i, item := range items {
		if ctx.Err() != nil {
			cancelled.Store(true)
			report.Results[i] = skippedResult(item)
			continue
		}
		g.Go(func() error {
			// Go may block on the limit past cancellation.
			if ctx.Err() != nil {
				cancelled.Store(true)
				report.Results[i] = skippedResult(item)
				return nil
			}
			res, err := s.ingestItem(ctx, item)
			if err != nil {
				res.Error = err.Error()
				if ctx.Err() != nil {
					cancelled.Store(true)
				}
			}
			report.Results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	report.Cancelled = cancelled.Load()

	s.logger.Info("course ingestion finished",
		zap.Uint("course_id", courseID),
		zap.Int("items", len(items)),
		zap.Int("indexed", report.Count(IngestIndexed)),
		zap.Int("partial", report.Count(IngestPartial)),
		zap.Int("failed", report.Count(IngestFailed)),
		zap.Int("no_content", report.Count(IngestNoContent)),
		zap.Bool("cancelled", report.Cancelled),
	)
	if report.Cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

// DeleteSource drops every chunk of a source, for example after the item
// itself was deleted.
func (s *IngestionService) DeleteSource(ctx context.Context, sourceType model.SourceType, id uint) (int64, error) {
	if id == 0 {
		return 0, ErrInvalidInput
	}
	unlock := s.locks.Lock(lockKey(sourceType, id))
	defer unlock()

	n, err := s.chunks.DeleteBySource(ctx, sourceType, id)
	if err != nil {
		return 0, err
	}
	s.logger.Info("source index deleted",
		zap.String("source_type", sourceType.String()),
		zap.Uint("source_id", id),
		zap.Int64("chunks", n),
	)
	return n, nil
}

func (s *IngestionService) ingestItem(ctx context.Context, item sourceItem) (IngestResult, error) {
	unlock := s.locks.Lock(lockKey(item.sourceType, item.sourceID))
	defer unlock()

	res := IngestResult{
		SourceType: item.sourceType,
		SourceID:   item.sourceID,
		Title:      item.title,
		Status:     IngestFailed,
	}
	log := s.logger.With(
		zap.String("source_type", item.sourceType.String()),
		zap.Uint("source_id", item.sourceID),
	)

	text, err := s.resolveText(ctx, item)
	if err != nil {
		log.Warn("resolve content failed", zap.Error(err))
		return res, err
	}
	if text == "" {
		res.Status = IngestNoContent
		log.Info("no content to index")
		return res, nil
	}

	seq, err := chunker.Split(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return res, err
	}

	var records []model.ChunkRecord
	for c := range seq {
		res.ChunksAttempted++
		vec, err := s.embedWithRetry(ctx, c.Text)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			log.Warn("embed chunk failed, skipping", zap.Int("chunk_index", c.Index), zap.Error(err))
			continue
		}
		records = append(records, model.ChunkRecord{
			CourseID:    item.courseID,
			SourceTitle: item.title,
			ChunkIndex:  c.Index,
			TextChunk:   c.Text,
			Embedding:   model.Vector(vec),
		})
	}
	res.ChunksIndexed = len(records)

	if res.ChunksIndexed == 0 {
		log.Error("no chunk could be embedded", zap.Int("chunks_attempted", res.ChunksAttempted))
		return res, fmt.Errorf("%w: %s %d: 0 of %d chunks embedded",
			ErrIndexingFailed, item.sourceType, item.sourceID, res.ChunksAttempted)
	}
	if err := s.chunks.ReplaceBySource(ctx, item.sourceType, item.sourceID, records); err != nil {
		return res, err
	}

	res.Status = IngestIndexed
	if res.ChunksIndexed < res.ChunksAttempted {
		res.Status = IngestPartial
		log.Warn("source partially indexed",
			zap.Int("chunks_attempted", res.ChunksAttempted),
			zap.Int("chunks_indexed", res.ChunksIndexed),
		)
	} else {
		log.Info("source indexed", zap.Int("chunks", res.ChunksIndexed))
	}
	return res, nil
}

// resolveText joins the inline text of an item with the text of its attachment.
func (s *IngestionService) resolveText(ctx context.Context, item sourceItem) (string, error) {
	var parts []string
	if inline := extract.Normalize(item.inline); inline != "" {
		parts = append(parts, inline)
	}
	if strings.TrimSpace(item.handle) != "" {
		text, err := s.extractAttachment(ctx, item)
		if err != nil {
			return "", err
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func (s *IngestionService) extractAttachment(ctx context.Context, item sourceItem) (string, error) {
	if s.blobs == nil {
		return "", fmt.Errorf("%w: no blob store configured", blob.ErrNotFound)
	}
	rc, err := s.blobs.Open(ctx, item.handle)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, s.maxBlobBytes+1))
	if err != nil {
		return "", fmt.Errorf("read attachment failed: %w", err)
	}
	if int64(len(raw)) > s.maxBlobBytes {
		return "", fmt.Errorf("%w: attachment exceeds %d bytes", extract.ErrExtractionFailed, s.maxBlobBytes)
	}

	hint := item.mimeType
	if hint == "" {
		if id, err := blob.StorageID(item.handle); err == nil {
			hint = id
		}
	}
	return extract.Extract(raw, hint)
}

func skippedResult(item sourceItem) IngestResult {
	return IngestResult{
		SourceType: item.sourceType,
		SourceID:   item.sourceID,
		Title:      item.title,
		Status:     IngestSkipped,
	}
}

// embedWithRetry retries only when the provider is unavailable; a rejected
// chunk will be rejected again.
func (s *IngestionService) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.EmbedRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * s.cfg.EmbedRetryBackoff):
			}
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		vec, err := s.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !errors.Is(err, ai.ErrEmbeddingUnavailable) {
			break
		}
	}
	return nil, lastErr
}

func (s *IngestionService) embedOnce(ctx context.Context, text string) ([]float32, error) {
	if s.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.EmbedTimeout)
		defer cancel()
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ai.ErrEmbeddingRejected)
	}
	return vec, nil
}

func (s *IngestionService) loadItem(ctx context.Context, sourceType model.SourceType, id uint) (sourceItem, error) {
	switch sourceType {
	case model.SourceMaterial:
		m, err := s.content.GetMaterial(ctx, id)
		if err != nil {
			return sourceItem{}, err
		}
		if m == nil {
			return sourceItem{}, fmt.Errorf("%w: material %d", ErrSourceNotFound, id)
		}
		return materialItem(m), nil
	case model.SourceLesson:
		l, err := s.content.GetLesson(ctx, id)
		if err != nil {
			return sourceItem{}, err
		}
		if l == nil {
			return sourceItem{}, fmt.Errorf("%w: lesson %d", ErrSourceNotFound, id)
		}
		return lessonItem(l), nil
	case model.SourceEbook:
		e, err := s.content.GetEbook(ctx, id)
		if err != nil {
			return sourceItem{}, err
		}
		if e == nil {
			return sourceItem{}, fmt.Errorf("%w: ebook %d", ErrSourceNotFound, id)
		}
		return ebookItem(e), nil
	default:
		return sourceItem{}, fmt.Errorf("%w: unknown source type %q", ErrInvalidInput, sourceType)
	}
}

func materialItem(m *model.CourseMaterial) sourceItem {
	courseID := m.CourseID
	return sourceItem{
		sourceType: model.SourceMaterial,
		sourceID:   m.ID,
		courseID:   &courseID,
		title:      m.Title,
		inline:     m.Content,
		handle:     m.FileURL,
		mimeType:   m.MimeType,
	}
}

func lessonItem(l *model.Lesson) sourceItem {
	courseID := l.CourseID
	return sourceItem{
		sourceType: model.SourceLesson,
		sourceID:   l.ID,
		courseID:   &courseID,
		title:      l.Title,
		inline:     l.Content,
		handle:     l.AttachmentURL,
		mimeType:   l.MimeType,
	}
}

// Library books are shared across courses, so their chunks carry no course.
func ebookItem(e *model.Ebook) sourceItem {
	return sourceItem{
		sourceType: model.SourceEbook,
		sourceID:   e.ID,
		title:      "Book: " + e.Title,
		handle:     e.FileURL,
		mimeType:   e.MimeType,
	}
}

func lockKey(sourceType model.SourceType, id uint) string {
	return fmt.Sprintf("%s:%d", sourceType, id)
}
