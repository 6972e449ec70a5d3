package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"coursetutor/internal/model"
	"coursetutor/internal/transport/http/middleware"
	"coursetutor/internal/transport/http/response"
)

type JobPublisher interface {
	Publish(ctx context.Context, job model.IngestJob) error
}

type SourceDeleter interface {
	DeleteSource(ctx context.Context, sourceType model.SourceType, id uint) (int64, error)
}

type ChunkLister interface {
	ListBySource(ctx context.Context, sourceType model.SourceType, sourceID uint) ([]model.ChunkRecord, error)
}

// IndexHandler queues indexing jobs and exposes the stored chunks for audit.
type IndexHandler struct {
	publisher JobPublisher
	deleter   SourceDeleter
	chunks    ChunkLister
}

type chunkView struct {
	ID           uint             `json:"id"`
	CourseID     *uint            `json:"course_id"`
	SourceType   model.SourceType `json:"source_type"`
	SourceID     uint             `json:"source_id"`
	SourceTitle  string           `json:"source_title"`
	ChunkIndex   int              `json:"chunk_index"`
	TextChunk    string           `json:"text_chunk"`
	HasEmbedding bool             `json:"has_embedding"`
	CreatedAt    time.Time        `json:"created_at"`
}

func NewIndexHandler(publisher JobPublisher, deleter SourceDeleter, chunks ChunkLister) *IndexHandler {
	return &IndexHandler{
		publisher: publisher,
		deleter:   deleter,
		chunks:    chunks,
	}
}

func (h *IndexHandler) IndexCourse(c *gin.Context) {
	courseID, ok := parseID(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid course id")
		return
	}
	h.enqueue(c, model.IngestJob{Kind: model.JobIndexCourse, CourseID: courseID})
}

func (h *IndexHandler) IndexSource(c *gin.Context) {
	sourceType, sourceID, ok := parseSource(c)
	if !ok {
		return
	}
	h.enqueue(c, model.IngestJob{Kind: model.JobIndexSource, SourceType: sourceType, SourceID: sourceID})
}

func (h *IndexHandler) DeleteSource(c *gin.Context) {
	sourceType, sourceID, ok := parseSource(c)
	if !ok {
		return
	}
	deleted, err := h.deleter.DeleteSource(c.Request.Context(), sourceType, sourceID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete index failed")
		return
	}
	response.OK(c, gin.H{"deleted": deleted})
}

func (h *IndexHandler) ListChunks(c *gin.Context) {
	sourceType, sourceID, ok := parseSource(c)
	if !ok {
		return
	}
	records, err := h.chunks.ListBySource(c.Request.Context(), sourceType, sourceID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list chunks failed")
		return
	}
	views := make([]chunkView, 0, len(records))
	for _, r := range records {
		views = append(views, chunkView{
			ID:           r.ID,
			CourseID:     r.CourseID,
			SourceType:   r.SourceType,
			SourceID:     r.SourceID,
			SourceTitle:  r.SourceTitle,
			ChunkIndex:   r.ChunkIndex,
			TextChunk:    r.TextChunk,
			HasEmbedding: r.HasEmbedding(),
			CreatedAt:    r.CreatedAt,
		})
	}
	response.OK(c, views)
}

func (h *IndexHandler) enqueue(c *gin.Context, job model.IngestJob) {
	job.RequestedAt = time.Now()
	if userID, ok := middleware.UserID(c); ok {
		job.RequestedBy = userID
	}
	if err := h.publisher.Publish(c.Request.Context(), job); err != nil {
		if errors.Is(err, model.ErrInvalidJob) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
			return
		}
		response.Error(c, http.StatusServiceUnavailable, response.CodeQueueFailed, "enqueue ingest job failed")
		return
	}
	response.Accepted(c, job)
}

func parseSource(c *gin.Context) (model.SourceType, uint, bool) {
	sourceType, ok := model.ParseSourceType(c.Param("type"))
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidSource, "unknown source type")
		return "", 0, false
	}
	sourceID, ok := parseID(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid source id")
		return "", 0, false
	}
	return sourceType, sourceID, true
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
