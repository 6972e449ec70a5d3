package app

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursetutor/internal/ai"
	"coursetutor/internal/extract"
	"coursetutor/internal/model"
	"coursetutor/internal/repository"
)

func TestIngestMaterial_PartialFailure(t *testing.T) {
	env := newTestEnv(t)
	// 900 characters with size 100 and overlap 10 gives 10 windows.
	m := model.CourseMaterial{CourseID: 1, Title: "Algebra", Content: strings.Repeat("abcdefghij", 90)}
	require.NoError(t, env.db.Create(&m).Error)

	emb := &funcEmbedder{fn: func(call int64, _ string) ([]float32, error) {
		if call == 3 || call == 7 {
			return nil, ai.ErrEmbeddingRejected
		}
		return []float32{1, 0}, nil
	}}
	cfg := testConfig()
	cfg.ChunkSize, cfg.ChunkOverlap = 100, 10

	res, err := env.ingestion(emb, cfg).IngestMaterial(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, IngestPartial, res.Status)
	assert.Equal(t, 10, res.ChunksAttempted)
	assert.Equal(t, 8, res.ChunksIndexed)

	n, err := env.chunks.CountBySource(context.Background(), model.SourceMaterial, m.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)

	records, err := env.chunks.ListBySource(context.Background(), model.SourceMaterial, m.ID)
	require.NoError(t, err)
	var indexes []int
	for _, r := range records {
		indexes = append(indexes, r.ChunkIndex)
		require.NotNil(t, r.CourseID)
		assert.EqualValues(t, 1, *r.CourseID)
		assert.Equal(t, "Algebra", r.SourceTitle)
	}
	assert.Equal(t, []int{0, 1, 3, 4, 5, 7, 8, 9}, indexes)
}

func TestIngestMaterial_ReplaceIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	m := model.CourseMaterial{CourseID: 1, Title: "History", Content: strings.Repeat("The past. ", 250)}
	require.NoError(t, env.db.Create(&m).Error)
	svc := env.ingestion(constEmbedder(1, 2, 3), testConfig())
	ctx := context.Background()

	_, err := svc.IngestMaterial(ctx, m.ID)
	require.NoError(t, err)
	first, err := env.chunks.ListBySource(ctx, model.SourceMaterial, m.ID)
	require.NoError(t, err)

	_, err = svc.IngestMaterial(ctx, m.ID)
	require.NoError(t, err)
	second, err := env.chunks.ListBySource(ctx, model.SourceMaterial, m.ID)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	firstIDs := map[uint]bool{}
	for _, r := range first {
		firstIDs[r.ID] = true
	}
	for i := range second {
		assert.Equal(t, first[i].TextChunk, second[i].TextChunk)
		assert.False(t, firstIDs[second[i].ID], "record from the first run survived")
	}
}

func TestIngestMaterial_AttachmentAndInlineAreJoined(t *testing.T) {
	env := newTestEnv(t)
	env.blobs.put("notes.txt", []byte("Attached\r\n\r\n\r\n\r\nnotes"))
	m := model.CourseMaterial{CourseID: 2, Title: "Week 1", Content: "Inline intro", FileURL: "/api/storage/notes.txt"}
	require.NoError(t, env.db.Create(&m).Error)

	res, err := env.ingestion(constEmbedder(1), testConfig()).IngestMaterial(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, IngestIndexed, res.Status)

	records, err := env.chunks.ListBySource(context.Background(), model.SourceMaterial, m.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Inline intro\n\nAttached\n\nnotes", records[0].TextChunk)
}

func TestIngestMaterial_NoContentKeepsPreviousIndex(t *testing.T) {
	env := newTestEnv(t)
	m := model.CourseMaterial{CourseID: 1, Title: "Biology", Content: "Cells divide."}
	require.NoError(t, env.db.Create(&m).Error)
	svc := env.ingestion(constEmbedder(1), testConfig())
	ctx := context.Background()

	_, err := svc.IngestMaterial(ctx, m.ID)
	require.NoError(t, err)

	require.NoError(t, env.db.Model(&m).Update("content", "   \n ").Error)
	res, err := svc.IngestMaterial(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, IngestNoContent, res.Status)

	n, err := env.chunks.CountBySource(ctx, model.SourceMaterial, m.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestIngestMaterial_IndexingFailedKeepsPreviousIndex(t *testing.T) {
	env := newTestEnv(t)
	m := model.CourseMaterial{CourseID: 1, Title: "Physics", Content: "Force equals mass times acceleration."}
	require.NoError(t, env.db.Create(&m).Error)
	ctx := context.Background()

	_, err := env.ingestion(constEmbedder(1), testConfig()).IngestMaterial(ctx, m.ID)
	require.NoError(t, err)

	failing := &funcEmbedder{fn: func(int64, string) ([]float32, error) { return nil, ai.ErrEmbeddingUnavailable }}
	res, err := env.ingestion(failing, testConfig()).IngestMaterial(ctx, m.ID)
	require.ErrorIs(t, err, ErrIndexingFailed)
	assert.Equal(t, IngestFailed, res.Status)
	assert.Equal(t, 1, res.ChunksAttempted)
	assert.Equal(t, 0, res.ChunksIndexed)
	// one attempt plus two retries
	assert.EqualValues(t, 3, failing.calls.Load())

	n, err := env.chunks.CountBySource(ctx, model.SourceMaterial, m.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestIngestMaterial_RetriesOnlyUnavailable(t *testing.T) {
	env := newTestEnv(t)
	m := model.CourseMaterial{CourseID: 1, Title: "Chemistry", Content: "Water is H2O."}
	require.NoError(t, env.db.Create(&m).Error)

	flaky := &funcEmbedder{fn: func(call int64, _ string) ([]float32, error) {
		if call < 3 {
			return nil, ai.ErrEmbeddingUnavailable
		}
		return []float32{1, 1}, nil
	}}
	res, err := env.ingestion(flaky, testConfig()).IngestMaterial(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, IngestIndexed, res.Status)
	assert.EqualValues(t, 3, flaky.calls.Load())

	rejected := &funcEmbedder{fn: func(int64, string) ([]float32, error) { return nil, ai.ErrEmbeddingRejected }}
	_, err = env.ingestion(rejected, testConfig()).IngestMaterial(context.Background(), m.ID)
	require.ErrorIs(t, err, ErrIndexingFailed)
	assert.EqualValues(t, 1, rejected.calls.Load())
}

func TestIngestMaterial_ExtractionErrorAbortsItem(t *testing.T) {
	env := newTestEnv(t)
	env.blobs.put("broken.pdf", []byte("not really a pdf"))
	m := model.CourseMaterial{CourseID: 1, Title: "Scan", Content: "intro", FileURL: "broken.pdf", MimeType: "application/pdf"}
	require.NoError(t, env.db.Create(&m).Error)

	emb := constEmbedder(1)
	res, err := env.ingestion(emb, testConfig()).IngestMaterial(context.Background(), m.ID)
	require.Error(t, err)
	assert.Equal(t, IngestFailed, res.Status)
	assert.Zero(t, emb.calls.Load())
}

func TestIngestMaterial_OversizedAttachmentFails(t *testing.T) {
	env := newTestEnv(t)
	env.blobs.put("fits.txt", []byte("sixteen bytes ok"))
	env.blobs.put("big.txt", []byte("sixteen bytes ok and then the TAIL"))
	fits := model.CourseMaterial{CourseID: 1, Title: "Fits", FileURL: "fits.txt", MimeType: "text/plain"}
	big := model.CourseMaterial{CourseID: 1, Title: "Big", FileURL: "big.txt", MimeType: "text/plain"}
	require.NoError(t, env.db.Create(&fits).Error)
	require.NoError(t, env.db.Create(&big).Error)

	emb := constEmbedder(1)
	svc := env.ingestion(emb, testConfig())
	svc.maxBlobBytes = 16

	res, err := svc.IngestMaterial(context.Background(), fits.ID)
	require.NoError(t, err)
	assert.Equal(t, IngestIndexed, res.Status)

	res, err = svc.IngestMaterial(context.Background(), big.ID)
	require.ErrorIs(t, err, extract.ErrExtractionFailed)
	assert.Equal(t, IngestFailed, res.Status)
	assert.EqualValues(t, 1, emb.calls.Load())

	n, err := env.chunks.CountBySource(context.Background(), model.SourceMaterial, big.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestSource_NotFoundAndInvalid(t *testing.T) {
	env := newTestEnv(t)
	svc := env.ingestion(constEmbedder(1), testConfig())
	ctx := context.Background()

	_, err := svc.IngestLesson(ctx, 42)
	assert.ErrorIs(t, err, ErrSourceNotFound)
	_, err = svc.IngestSource(ctx, model.SourceType("VIDEO"), 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.IngestMaterial(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestIngestEbook_IsSharedAcrossCourses(t *testing.T) {
	env := newTestEnv(t)
	env.blobs.put("book.txt", []byte("Chapter one of the library book."))
	e := model.Ebook{Title: "Odyssey", FileURL: "/api/files/book.txt"}
	require.NoError(t, env.db.Create(&e).Error)

	res, err := env.ingestion(constEmbedder(1), testConfig()).IngestEbook(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Book: Odyssey", res.Title)

	records, err := env.chunks.ListBySource(context.Background(), model.SourceEbook, e.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].CourseID)
	assert.Equal(t, "Book: Odyssey", records[0].SourceTitle)
}

func TestIngestCourse_IsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	good := model.CourseMaterial{CourseID: 7, Title: "Good", Content: "Plenty of text."}
	bad := model.CourseMaterial{CourseID: 7, Title: "Bad", FileURL: "slides.key", MimeType: "application/x-keynote"}
	empty := model.CourseMaterial{CourseID: 7, Title: "Empty"}
	lesson := model.Lesson{CourseID: 7, Title: "Lesson 1", Content: "Lesson body."}
	other := model.CourseMaterial{CourseID: 8, Title: "Other course", Content: "Elsewhere."}
	env.blobs.put("slides.key", []byte{0x00, 0x01})
	for _, m := range []*model.CourseMaterial{&good, &bad, &empty, &other} {
		require.NoError(t, env.db.Create(m).Error)
	}
	require.NoError(t, env.db.Create(&lesson).Error)

	report, err := env.ingestion(constEmbedder(1), testConfig()).IngestCourse(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, report.Results, 4)
	assert.Equal(t, 2, report.Count(IngestIndexed))
	assert.Equal(t, 1, report.Count(IngestFailed))
	assert.Equal(t, 1, report.Count(IngestNoContent))
	assert.False(t, report.Cancelled)

	for _, r := range report.Results {
		if r.Status == IngestFailed {
			assert.Equal(t, "Bad", r.Title)
			assert.NotEmpty(t, r.Error)
		}
	}

	n, err := env.chunks.CountByCourse(context.Background(), 7)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = env.chunks.CountByCourse(context.Background(), 8)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestCourse_CancelledBeforeStart(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Create(&model.CourseMaterial{CourseID: 3, Title: "A", Content: "a"}).Error)
	require.NoError(t, env.db.Create(&model.Lesson{CourseID: 3, Title: "B", Content: "b"}).Error)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	emb := constEmbedder(1)
	svc := NewIngestionService(detachedContent{env.content}, env.blobs, env.chunks, emb, testConfig(), nil)

	report, err := svc.IngestCourse(ctx, 3)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.True(t, report.Cancelled)
	assert.Equal(t, 2, report.Count(IngestSkipped))
	assert.Zero(t, emb.calls.Load())
}

func TestIngestCourse_QueuedItemSkippedAfterCancel(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Create(&model.CourseMaterial{CourseID: 3, Title: "First", Content: "first"}).Error)
	require.NoError(t, env.db.Create(&model.Lesson{CourseID: 3, Title: "Second", Content: "second"}).Error)

	started := make(chan struct{})
	release := make(chan struct{})
	emb := &funcEmbedder{fn: func(call int64, _ string) ([]float32, error) {
		if call == 1 {
			close(started)
			<-release
		}
		return []float32{1}, nil
	}}
	cfg := testConfig()
	cfg.CourseParallelism = 1
	svc := NewIngestionService(detachedContent{env.content}, env.blobs, env.chunks, emb, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-started
		cancel()
		close(release)
	}()

	report, err := svc.IngestCourse(ctx, 3)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Results, 2)
	assert.True(t, report.Cancelled)
	assert.Equal(t, "Second", report.Results[1].Title)
	assert.Equal(t, IngestSkipped, report.Results[1].Status)
	assert.EqualValues(t, 1, emb.calls.Load())
}

func TestDeleteSource(t *testing.T) {
	env := newTestEnv(t)
	m := model.CourseMaterial{CourseID: 1, Title: "Gone", Content: strings.Repeat("x", 1500)}
	require.NoError(t, env.db.Create(&m).Error)
	svc := env.ingestion(constEmbedder(1), testConfig())
	ctx := context.Background()

	res, err := svc.IngestMaterial(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, 2, res.ChunksIndexed)

	n, err := svc.DeleteSource(ctx, model.SourceMaterial, m.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	left, err := env.chunks.CountBySource(ctx, model.SourceMaterial, m.ID)
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestIngestSource_ConcurrentSameSourceLeavesOneSet(t *testing.T) {
	env := newTestEnv(t)
	m := model.CourseMaterial{CourseID: 1, Title: "Race", Content: strings.Repeat("y", 2500)}
	require.NoError(t, env.db.Create(&m).Error)
	svc := env.ingestion(constEmbedder(1, 0), testConfig())

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.IngestMaterial(context.Background(), m.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := env.chunks.CountBySource(context.Background(), model.SourceMaterial, m.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Zero(t, svc.locks.size())
}

// detachedContent lists course items even after the caller's ctx is done.
type detachedContent struct {
	*repository.ContentRepository
}

func (d detachedContent) ListMaterialsByCourse(_ context.Context, courseID uint) ([]model.CourseMaterial, error) {
	return d.ContentRepository.ListMaterialsByCourse(context.Background(), courseID)
}

func (d detachedContent) ListLessonsByCourse(_ context.Context, courseID uint) ([]model.Lesson, error) {
	return d.ContentRepository.ListLessonsByCourse(context.Background(), courseID)
}
