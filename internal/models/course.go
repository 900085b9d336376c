package models

import "time"

// Course is a catalog entry holding an ordered sequence of lessons.
// Lesson order indices form a dense 0-based sequence unique within a course.
type Course struct {
	ID           string    `db:"id" json:"id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	Category     string    `db:"category" json:"category"`
	Price        float64   `db:"price" json:"price"`
	Thumbnail    string    `db:"thumbnail" json:"thumbnail"`
	Published    bool      `db:"published" json:"published"`
	Lessons      []Lesson  `db:"-" json:"lessons"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Lesson is an ordered unit of course content.
type Lesson struct {
	CourseID        string `db:"course_id" json:"-"`
	OrderIndex      int    `db:"order_index" json:"order_index"`
	Title           string `db:"title" json:"title"`
	VideoURL        string `db:"video_url" json:"video_url,omitempty"`
	DurationMinutes int    `db:"duration_minutes" json:"duration_minutes"`

	// EmbedURL is derived from VideoURL at read time and never stored.
	EmbedURL string `db:"-" json:"embed_url,omitempty"`
}

// TotalLessons reports the lesson count used for progress derivation.
func (c *Course) TotalLessons() int {
	return len(c.Lessons)
}

// CourseSummary is the joined catalog info attached to enrollment listings.
type CourseSummary struct {
	CourseTitle     string `db:"course_title" json:"course_title"`
	CourseCategory  string `db:"course_category" json:"course_category"`
	CourseThumbnail string `db:"course_thumbnail" json:"course_thumbnail"`
	TotalLessons    int    `db:"total_lessons" json:"total_lessons"`
}

// CourseFilter provides filters for listing the catalog.
type CourseFilter struct {
	Category      string
	InstructorID  string
	PublishedOnly bool
	Search        string
	Page          int
	PageSize      int
}
