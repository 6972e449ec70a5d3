package model

import "time"

// CourseMaterial is a teacher-authored item attached to a course. It may carry
// inline text, an uploaded file, or both.
type CourseMaterial struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"not null;index" json:"course_id"`
	Title     string    `gorm:"size:256;not null" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	FileURL   string    `gorm:"size:512" json:"file_url"`
	MimeType  string    `gorm:"size:128" json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Lesson struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CourseID      uint      `gorm:"not null;index" json:"course_id"`
	Title         string    `gorm:"size:256;not null" json:"title"`
	Content       string    `gorm:"type:text" json:"content"`
	AttachmentURL string    `gorm:"size:512" json:"attachment_url"`
	MimeType      string    `gorm:"size:128" json:"mime_type"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Ebook lives in the shared library and is not owned by a single course.
type Ebook struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:256;not null" json:"title"`
	FileURL   string    `gorm:"size:512;not null" json:"file_url"`
	MimeType  string    `gorm:"size:128" json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
