package models

import (
	"time"

	"github.com/lib/pq"
)

// UnansweredSentinel marks a question the learner left blank in a submission.
const UnansweredSentinel = -1

// Question is one graded item within a quiz. CorrectIndex is always a valid
// index into Options when the quiz is accepted for storage.
type Question struct {
	QuizID       string         `db:"quiz_id" json:"-"`
	OrderIndex   int            `db:"order_index" json:"order_index"`
	Text         string         `db:"text" json:"text"`
	Options      pq.StringArray `db:"options" json:"options"`
	CorrectIndex int            `db:"correct_index" json:"correct_index"`
}

// Quiz is an ordered question bank belonging to a course.
type Quiz struct {
	ID        string     `db:"id" json:"id"`
	CourseID  string     `db:"course_id" json:"course_id"`
	Title     string     `db:"title" json:"title"`
	Questions []Question `db:"-" json:"questions"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// QuestionView is the learner-facing shape of a question with the answer key
// stripped.
type QuestionView struct {
	OrderIndex int      `json:"order_index"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
}

// QuizView is the learner-facing shape of a quiz.
type QuizView struct {
	ID        string         `json:"id"`
	CourseID  string         `json:"course_id"`
	Title     string         `json:"title"`
	Questions []QuestionView `json:"questions"`
	CreatedAt time.Time      `json:"created_at"`
}

// Sanitized strips correct indexes so graded answers never leave the server.
func (q *Quiz) Sanitized() QuizView {
	view := QuizView{ID: q.ID, CourseID: q.CourseID, Title: q.Title, CreatedAt: q.CreatedAt}
	view.Questions = make([]QuestionView, len(q.Questions))
	for i, question := range q.Questions {
		view.Questions[i] = QuestionView{
			OrderIndex: question.OrderIndex,
			Text:       question.Text,
			Options:    question.Options,
		}
	}
	return view
}

// QuizResult is the immutable outcome of one learner's one submission.
type QuizResult struct {
	ID             string        `db:"id" json:"id"`
	QuizID         string        `db:"quiz_id" json:"quiz_id"`
	LearnerID      string        `db:"learner_id" json:"learner_id"`
	Answers        pq.Int64Array `db:"answers" json:"answers"`
	CorrectCount   int           `db:"correct_count" json:"correct_count"`
	TotalQuestions int           `db:"total_questions" json:"total_questions"`
	Score          int           `db:"score" json:"score"`
	SubmittedAt    time.Time     `db:"submitted_at" json:"submitted_at"`
}

// QuizResultDetail enriches a result with quiz and course context.
type QuizResultDetail struct {
	QuizResult
	QuizTitle   string `db:"quiz_title" json:"quiz_title"`
	CourseID    string `db:"course_id" json:"course_id"`
	CourseTitle string `db:"course_title" json:"course_title"`
}
