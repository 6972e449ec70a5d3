package model

import "strings"

// SourceType identifies which content collaborator owns an indexed item.
type SourceType string

const (
	SourceMaterial SourceType = "MATERIAL"
	SourceEbook    SourceType = "EBOOK"
	SourceLesson   SourceType = "LESSON"
)

// ParseSourceType accepts any casing of a known source type.
func ParseSourceType(raw string) (SourceType, bool) {
	switch t := SourceType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case SourceMaterial, SourceEbook, SourceLesson:
		return t, true
	default:
		return "", false
	}
}

func (t SourceType) String() string {
	return string(t)
}
