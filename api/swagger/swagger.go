package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LearnHub API",
        "description": "Learner progress and assessment tracking for the LearnHub course platform",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Identity sync and profile"},
        {"name": "Courses", "description": "Course catalog"},
        {"name": "Enrollments", "description": "Enrollment lifecycle and lesson progress"},
        {"name": "Quizzes", "description": "Quiz management and grading"},
        {"name": "Stats", "description": "Platform aggregates"}
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/auth/sync": {
            "post": {
                "tags": ["Auth"],
                "summary": "Sync identity-provider user and issue access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SyncUserRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current user profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/profile/{uid}": {
            "get": {
                "tags": ["Auth"],
                "summary": "Profile by identity-provider UID",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"type": "string", "name": "uid", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List the course catalog",
                "parameters": [
                    {"name": "category", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Courses"],
                "summary": "Create course (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCourseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Get a course with its lessons",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/enrollments": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll the caller in a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already enrolled"}
                }
            }
        },
        "/enrollments/my-courses": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List the caller's enrollments",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/analytics": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Per-day enrollment counts (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "range", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/by-course/{courseId}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List a course's enrollments (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/by-course/{courseId}/export": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Export a course's enrollments as csv or pdf (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        },
        "/enrollments/{id}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get an enrollment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden"}
                }
            },
            "delete": {
                "tags": ["Enrollments"],
                "summary": "Drop an active enrollment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not active"}
                }
            }
        },
        "/enrollments/{id}/complete-lesson": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Mark a lesson complete",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CompleteLessonRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid lesson index"},
                    "409": {"description": "Enrollment not active"}
                }
            }
        },
        "/enrollments/{id}/access": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Record course access",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/certificate": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Download a completion certificate",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF download"},
                    "409": {"description": "Course not completed"}
                }
            }
        },
        "/quizzes": {
            "post": {
                "tags": ["Quizzes"],
                "summary": "Create quiz (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/QuizPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Invalid question"}
                }
            }
        },
        "/quizzes/my-results": {
            "get": {
                "tags": ["Quizzes"],
                "summary": "List the caller's quiz results",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quizzes/by-course/{courseId}": {
            "get": {
                "tags": ["Quizzes"],
                "summary": "List a course's quizzes",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quizzes/{id}": {
            "get": {
                "tags": ["Quizzes"],
                "summary": "Get a quiz",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Quizzes"],
                "summary": "Update quiz (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/QuizPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Quizzes"],
                "summary": "Delete quiz (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/quizzes/{id}/submit": {
            "post": {
                "tags": ["Quizzes"],
                "summary": "Submit quiz answers for grading",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitQuizRequest"}}
                ],
                "responses": {
                    "201": {"description": "Graded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid or incomplete submission"},
                    "409": {"description": "Already submitted"}
                }
            }
        },
        "/assignments": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Submit coursework for a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitAssignmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Course not found"}
                }
            }
        },
        "/assignments/my": {
            "get": {
                "tags": ["Assignments"],
                "summary": "List the caller's submissions",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/admin/all": {
            "get": {
                "tags": ["Assignments"],
                "summary": "List all submissions for review (admin)",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/stats/overview": {
            "get": {
                "tags": ["Stats"],
                "summary": "Platform-wide enrollment statistics (admin)",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SyncUserRequest": {
            "type": "object",
            "properties": {
                "external_uid": {"type": "string"},
                "email": {"type": "string"},
                "display_name": {"type": "string"},
                "photo_url": {"type": "string"},
                "email_verified": {"type": "boolean"}
            },
            "required": ["external_uid", "email"]
        },
        "CreateCourseRequest": {
            "type": "object",
            "properties": {
                "instructor_id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "category": {"type": "string"},
                "price": {"type": "number"},
                "thumbnail": {"type": "string"},
                "published": {"type": "boolean"},
                "lessons": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/LessonPayload"}
                }
            },
            "required": ["instructor_id", "title", "category", "lessons"]
        },
        "LessonPayload": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "video_url": {"type": "string"},
                "duration_minutes": {"type": "integer"}
            },
            "required": ["title"]
        },
        "EnrollRequest": {
            "type": "object",
            "properties": {
                "course_id": {"type": "string"}
            },
            "required": ["course_id"]
        },
        "CompleteLessonRequest": {
            "type": "object",
            "properties": {
                "lesson_index": {"type": "integer"}
            },
            "required": ["lesson_index"]
        },
        "QuizPayload": {
            "type": "object",
            "properties": {
                "course_id": {"type": "string"},
                "title": {"type": "string"},
                "questions": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/QuestionPayload"}
                }
            },
            "required": ["course_id", "title", "questions"]
        },
        "QuestionPayload": {
            "type": "object",
            "properties": {
                "text": {"type": "string"},
                "options": {"type": "array", "items": {"type": "string"}},
                "correct_index": {"type": "integer"}
            },
            "required": ["text", "options"]
        },
        "SubmitAssignmentRequest": {
            "type": "object",
            "properties": {
                "course_id": {"type": "string"},
                "title": {"type": "string"},
                "submission_link": {"type": "string"},
                "description": {"type": "string"}
            },
            "required": ["course_id", "title", "submission_link"]
        },
        "SubmitQuizRequest": {
            "type": "object",
            "properties": {
                "answers": {"type": "array", "items": {"type": "integer"}}
            },
            "required": ["answers"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
