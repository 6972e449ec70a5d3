package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestJob_Validate(t *testing.T) {
	valid := []IngestJob{
		{Kind: JobIndexCourse, CourseID: 1},
		{Kind: JobIndexSource, SourceType: SourceLesson, SourceID: 2},
		{Kind: JobIndexSource, SourceType: SourceEbook, SourceID: 3},
	}
	for _, j := range valid {
		assert.NoError(t, j.Validate(), j.Kind)
	}

	invalid := []IngestJob{
		{},
		{Kind: JobIndexCourse},
		{Kind: JobIndexSource, SourceType: "VIDEO", SourceID: 2},
		{Kind: JobIndexSource, SourceType: SourceMaterial},
		{Kind: "DELETE_SOURCE", SourceType: SourceEbook, SourceID: 3},
	}
	for _, j := range invalid {
		assert.ErrorIs(t, j.Validate(), ErrInvalidJob)
	}
}
