package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Completed and dropped are terminal:
// only LastAccessedAt may change afterwards.
const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
)

// Valid reports whether the value is a known status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusDropped:
		return true
	}
	return false
}

// CompletedLesson records one lesson finished within an enrollment.
// LessonIndex is unique per enrollment; CompletedAt never changes once set.
type CompletedLesson struct {
	EnrollmentID string    `db:"enrollment_id" json:"-"`
	LessonIndex  int       `db:"lesson_index" json:"lesson_index"`
	CompletedAt  time.Time `db:"completed_at" json:"completed_at"`
}

// Enrollment captures a learner's relationship to a course, including
// derived progress and completion state. ProgressPercent is never set by
// callers; it is recomputed whenever the completion set grows.
type Enrollment struct {
	ID               string            `db:"id" json:"id"`
	LearnerID        string            `db:"learner_id" json:"learner_id"`
	CourseID         string            `db:"course_id" json:"course_id"`
	Status           EnrollmentStatus  `db:"status" json:"status"`
	ProgressPercent  int               `db:"progress_percent" json:"progress_percent"`
	CompletedLessons []CompletedLesson `db:"-" json:"completed_lessons"`
	EnrolledAt       time.Time         `db:"enrolled_at" json:"enrolled_at"`
	LastAccessedAt   time.Time         `db:"last_accessed_at" json:"last_accessed_at"`
	CompletedAt      *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
}

// HasLesson reports whether lessonIndex is already in the completion set.
func (e *Enrollment) HasLesson(lessonIndex int) bool {
	for _, l := range e.CompletedLessons {
		if l.LessonIndex == lessonIndex {
			return true
		}
	}
	return false
}

// EnrollmentDetail enriches Enrollment with course summary info.
type EnrollmentDetail struct {
	Enrollment
	CourseSummary
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	LearnerID string
	CourseID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}

// EnrollmentStats aggregates counts and average progress over enrollments.
type EnrollmentStats struct {
	Total           int `json:"total"`
	Active          int `json:"active"`
	Completed       int `json:"completed"`
	Dropped         int `json:"dropped"`
	AverageProgress int `json:"average_progress"`
}

// EnrollmentDayCount is one point of the admin enrollments-over-time series.
type EnrollmentDayCount struct {
	Day   time.Time `db:"day" json:"day"`
	Count int       `db:"count" json:"count"`
}
