package model

import (
	"errors"
	"time"
)

type IngestJobKind string

const (
	JobIndexCourse IngestJobKind = "INDEX_COURSE"
	JobIndexSource IngestJobKind = "INDEX_SOURCE"
)

var ErrInvalidJob = errors.New("invalid ingest job")

// IngestJob is the queue payload for asynchronous indexing.
type IngestJob struct {
	Kind        IngestJobKind `json:"kind"`
	CourseID    uint          `json:"course_id,omitempty"`
	SourceType  SourceType    `json:"source_type,omitempty"`
	SourceID    uint          `json:"source_id,omitempty"`
	RequestedBy uint          `json:"requested_by,omitempty"`
	RequestedAt time.Time     `json:"requested_at"`
}

func (j IngestJob) Validate() error {
	switch j.Kind {
	case JobIndexCourse:
		if j.CourseID == 0 {
			return ErrInvalidJob
		}
	case JobIndexSource:
		if _, ok := ParseSourceType(string(j.SourceType)); !ok || j.SourceID == 0 {
			return ErrInvalidJob
		}
	default:
		return ErrInvalidJob
	}
	return nil
}
