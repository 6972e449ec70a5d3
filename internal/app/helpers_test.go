package app

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"coursetutor/internal/ai"
	"coursetutor/internal/blob"
	"coursetutor/internal/model"
	"coursetutor/internal/repository"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "tutor.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.ChunkRecord{}, &model.CourseMaterial{}, &model.Lesson{}, &model.Ebook{}))
	return db
}

type testEnv struct {
	db      *gorm.DB
	chunks  *repository.ChunkRepository
	content *repository.ContentRepository
	blobs   *memBlobStore
}

func newTestEnv(t *testing.T) *testEnv {
	db := openTestDB(t)
	return &testEnv{
		db:      db,
		chunks:  repository.NewChunkRepository(db),
		content: repository.NewContentRepository(db),
		blobs:   &memBlobStore{files: map[string][]byte{}},
	}
}

func (e *testEnv) ingestion(embedder ai.Embedder, cfg RetrievalConfig) *IngestionService {
	return NewIngestionService(e.content, e.blobs, e.chunks, embedder, cfg, nil)
}

func testConfig() RetrievalConfig {
	cfg := DefaultRetrievalConfig()
	cfg.EmbedRetryBackoff = 0
	cfg.EmbedRatePerSec = 0
	return cfg
}

type memBlobStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memBlobStore) put(id string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[id] = data
}

func (m *memBlobStore) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	id, err := blob.StorageID(handle)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[id]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// funcEmbedder adapts a function to ai.Embedder and counts calls.
type funcEmbedder struct {
	calls atomic.Int64
	fn    func(call int64, text string) ([]float32, error)
}

func (f *funcEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return f.fn(f.calls.Add(1), text)
}

// constEmbedder returns the same vector for every text.
func constEmbedder(vec ...float32) *funcEmbedder {
	return &funcEmbedder{fn: func(int64, string) ([]float32, error) { return vec, nil }}
}

type recordingCompleter struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	err     error
}

func (c *recordingCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	return c.answer, nil
}

func (c *recordingCompleter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}
