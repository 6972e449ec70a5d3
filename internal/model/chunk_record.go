package model

import "time"

// ChunkRecord is one indexed window of a source item's normalized text.
// Records are never updated in place: re-indexing a source deletes its
// records and inserts a fresh set.
type ChunkRecord struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CourseID    *uint      `gorm:"index:idx_chunk_course" json:"course_id"` // nil for library e-books
	SourceType  SourceType `gorm:"size:32;not null;index:idx_chunk_source_type;index:idx_chunk_source,priority:1" json:"source_type"`
	SourceID    uint       `gorm:"not null;index:idx_chunk_source,priority:2" json:"source_id"`
	SourceTitle string     `gorm:"size:256" json:"source_title"`
	ChunkIndex  int        `gorm:"not null" json:"chunk_index"`
	TextChunk   string     `gorm:"type:text;not null" json:"text_chunk"`
	Embedding   Vector     `gorm:"type:longtext" json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (ChunkRecord) TableName() string {
	return "chunk_records"
}

// HasEmbedding reports whether the record can take part in similarity ranking.
func (c *ChunkRecord) HasEmbedding() bool {
	return len(c.Embedding) > 0
}
