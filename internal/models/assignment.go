package models

import "time"

// Assignment is a learner's submitted piece of coursework, referenced by an
// external link rather than an uploaded file.
type Assignment struct {
	ID             string    `db:"id" json:"id"`
	CourseID       string    `db:"course_id" json:"course_id"`
	LearnerID      string    `db:"learner_id" json:"learner_id"`
	Title          string    `db:"title" json:"title"`
	SubmissionLink string    `db:"submission_link" json:"submission_link"`
	Description    *string   `db:"description" json:"description,omitempty"`
	SubmittedAt    time.Time `db:"submitted_at" json:"submitted_at"`
}

// AssignmentDetail enriches a submission with course and learner context for
// the admin review view.
type AssignmentDetail struct {
	Assignment
	CourseTitle  string  `db:"course_title" json:"course_title"`
	LearnerName  *string `db:"learner_name" json:"learner_name,omitempty"`
	LearnerEmail string  `db:"learner_email" json:"learner_email"`
}
