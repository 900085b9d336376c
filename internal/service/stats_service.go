package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	"github.com/learnhub-dev/learnhub-api/internal/progress"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
	"github.com/learnhub-dev/learnhub-api/pkg/export"
)

const overviewCacheKey = "stats:overview"

// exportPageSize matches the repository's page size cap.
const exportPageSize = 100

type statsEnrollmentReader interface {
	ListAll(ctx context.Context) ([]models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

type statsUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// StatsService computes platform-wide progress aggregates, renders admin
// exports, and issues completion certificates.
type StatsService struct {
	enrollments  statsEnrollmentReader
	users        statsUserReader
	cache        *CacheService
	csvExporter  *export.CSVExporter
	pdfExporter  *export.PDFExporter
	issuerName   string
	certificates bool
	logger       *zap.Logger
}

// NewStatsService constructs StatsService.
func NewStatsService(enrollments statsEnrollmentReader, users statsUserReader, cache *CacheService, issuerName string, certificates bool, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{
		enrollments:  enrollments,
		users:        users,
		cache:        cache,
		csvExporter:  export.NewCSVExporter(),
		pdfExporter:  export.NewPDFExporter(),
		issuerName:   issuerName,
		certificates: certificates,
		logger:       logger,
	}
}

// Overview returns platform-wide enrollment counts and the average progress
// across all enrollments. The zero aggregate is returned when no enrollments
// exist.
func (s *StatsService) Overview(ctx context.Context) (*models.EnrollmentStats, error) {
	var cached models.EnrollmentStats
	if hit, err := s.cache.Get(ctx, overviewCacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	enrollments, err := s.enrollments.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	stats := progress.Stats(enrollments)

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, overviewCacheKey, stats, 0); err != nil {
			s.logger.Warn("failed to cache stats overview", zap.Error(err))
		}
	}
	return &stats, nil
}

// ExportByCourse renders a course's enrollment roster as csv or pdf bytes.
// It returns the payload plus its content type.
func (s *StatsService) ExportByCourse(ctx context.Context, courseID, format string) ([]byte, string, error) {
	filter := models.EnrollmentFilter{CourseID: courseID, Page: 1, PageSize: exportPageSize}
	var details []models.EnrollmentDetail
	for {
		page, total, err := s.enrollments.List(ctx, filter)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
		}
		details = append(details, page...)
		if len(page) == 0 || len(details) >= total {
			break
		}
		filter.Page++
	}

	dataset := export.Dataset{
		Headers: []string{"Enrollment ID", "Learner ID", "Status", "Progress %", "Enrolled At", "Last Accessed"},
	}
	for _, d := range details {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Enrollment ID": d.ID,
			"Learner ID":    d.LearnerID,
			"Status":        string(d.Status),
			"Progress %":    strconv.Itoa(d.ProgressPercent),
			"Enrolled At":   d.EnrolledAt.Format("2006-01-02"),
			"Last Accessed": d.LastAccessedAt.Format("2006-01-02"),
		})
	}

	switch format {
	case "csv", "":
		payload, err := s.csvExporter.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdfExporter.Render(dataset, "Course Enrollments")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

// Certificate renders a completion certificate for the caller's completed
// enrollment.
func (s *StatsService) Certificate(ctx context.Context, enrollmentID, learnerID string) ([]byte, error) {
	if !s.certificates {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "certificates are not enabled")
	}

	detail, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if detail.LearnerID != learnerID {
		return nil, appErrors.ErrForbidden
	}
	if detail.Status != models.EnrollmentStatusCompleted || detail.CompletedAt == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course is not completed")
	}

	learner, err := s.users.FindByID(ctx, learnerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load learner")
	}
	name := learner.Email
	if learner.DisplayName != nil && *learner.DisplayName != "" {
		name = *learner.DisplayName
	}

	payload, err := s.pdfExporter.Certificate(export.CertificateData{
		LearnerName: name,
		CourseTitle: detail.CourseTitle,
		CompletedAt: *detail.CompletedAt,
		IssuerName:  s.issuerName,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}
	s.logger.Info("certificate issued", zap.String("enrollment_id", enrollmentID), zap.String("learner_id", learnerID))
	return payload, nil
}
