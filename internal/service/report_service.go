package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/coem-edu/sga-api/internal/authz"
	"github.com/coem-edu/sga-api/internal/models"
	"github.com/coem-edu/sga-api/pkg/config"
	"github.com/coem-edu/sga-api/pkg/export"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
)

type reportGradesReader interface {
	ListByStudent(ctx context.Context, studentID string, filter models.GradeFilter) ([]models.Grade, error)
}

type enrolledClassesReader interface {
	ListClassesByStudent(ctx context.Context, studentID string) ([]models.Class, error)
}

type reportGuard interface {
	CanReadStudent(ctx context.Context, p authz.Principal, studentID string) error
}

// ReportService aggregates grades into per-class and whole-student reports.
type ReportService struct {
	grades      reportGradesReader
	students    studentFinder
	enrollments enrolledClassesReader
	guard       reportGuard
	scale       config.GradesConfig
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(grades reportGradesReader, students studentFinder, enrollments enrolledClassesReader, guard reportGuard, scale config.GradesConfig, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		grades:      grades,
		students:    students,
		enrollments: enrollments,
		guard:       guard,
		scale:       scale,
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// BuildStudentReport assembles the full academic record for one student.
// The overall average is the mean of per-class averages so a class with many
// entries cannot outweigh one with few; classes without grades are listed but
// excluded from the overall mean.
func (s *ReportService) BuildStudentReport(ctx context.Context, principal authz.Principal, studentID string) (*models.StudentReport, error) {
	if err := s.guard.CanReadStudent(ctx, principal, studentID); err != nil {
		return nil, err
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, storeError(err, "failed to load student")
	}

	classes, err := s.enrollments.ListClassesByStudent(ctx, studentID)
	if err != nil {
		return nil, storeError(err, "failed to load student classes")
	}

	grades, err := s.grades.ListByStudent(ctx, studentID, models.GradeFilter{})
	if err != nil {
		return nil, storeError(err, "failed to load student grades")
	}

	byClass := make(map[string][]models.Grade)
	for _, grade := range grades {
		byClass[grade.ClassID] = append(byClass[grade.ClassID], grade)
	}

	report := &models.StudentReport{
		StudentID:   student.ID,
		StudentName: student.Name,
		Classes:     make([]models.ClassReport, 0, len(classes)),
	}

	var classAverages []float64
	for _, class := range classes {
		classGrades := byClass[class.ID]
		if classGrades == nil {
			classGrades = []models.Grade{}
		}
		average := Average(classGrades)
		if len(classGrades) > 0 {
			classAverages = append(classAverages, average)
		}
		report.Classes = append(report.Classes, models.ClassReport{
			ClassID:   class.ID,
			ClassName: class.Name,
			Average:   average,
			Grades:    classGrades,
			ByPeriod:  GroupByPeriod(classGrades),
		})
	}

	report.OverallAverage = mean(classAverages)
	report.Passing = len(classAverages) > 0 && report.OverallAverage >= s.passThreshold()
	return report, nil
}

// RenderReportCardPDF builds the student's report and lays it out as a
// printable report card.
func (s *ReportService) RenderReportCardPDF(ctx context.Context, principal authz.Principal, studentID string) ([]byte, error) {
	report, err := s.BuildStudentReport(ctx, principal, studentID)
	if err != nil {
		return nil, err
	}

	card := export.ReportCard{
		StudentName:    report.StudentName,
		OverallAverage: report.OverallAverage,
	}
	for _, class := range report.Classes {
		card.Subjects = append(card.Subjects, export.ReportCardSubject{
			Name:    class.ClassName,
			Average: class.Average,
		})
	}

	payload, err := s.pdf.RenderReportCard(card)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report card")
	}
	return payload, nil
}

func (s *ReportService) passThreshold() float64 {
	if s.scale.PassThreshold > 0 {
		return s.scale.PassThreshold
	}
	return 6
}

// Average returns the arithmetic mean of the grade values; an empty set
// averages to zero rather than erroring.
func Average(grades []models.Grade) float64 {
	if len(grades) == 0 {
		return 0
	}
	var sum float64
	for _, grade := range grades {
		sum += grade.Value
	}
	return sum / float64(len(grades))
}

// GroupByPeriod buckets grades by academic period, ordered by period number,
// with a category breakdown inside each bucket.
func GroupByPeriod(grades []models.Grade) []models.PeriodSummary {
	if len(grades) == 0 {
		return nil
	}
	buckets := make(map[int][]models.Grade)
	for _, grade := range grades {
		period := grade.Period
		if period < 1 {
			period = models.DefaultPeriod
		}
		buckets[period] = append(buckets[period], grade)
	}

	periods := make([]int, 0, len(buckets))
	for period := range buckets {
		periods = append(periods, period)
	}
	sort.Ints(periods)

	summaries := make([]models.PeriodSummary, 0, len(periods))
	for _, period := range periods {
		summaries = append(summaries, models.PeriodSummary{
			Period:     period,
			Average:    Average(buckets[period]),
			ByCategory: GroupByType(buckets[period]),
		})
	}
	return summaries
}

// GroupByType buckets grades by their category label, case-insensitively,
// ordered by label. Untyped grades fall into a "general" bucket.
func GroupByType(grades []models.Grade) []models.CategorySummary {
	if len(grades) == 0 {
		return nil
	}
	buckets := make(map[string][]models.Grade)
	for _, grade := range grades {
		label := "general"
		if grade.Type != nil && *grade.Type != "" {
			label = strings.ToLower(*grade.Type)
		}
		buckets[label] = append(buckets[label], grade)
	}

	labels := make([]string, 0, len(buckets))
	for label := range buckets {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	summaries := make([]models.CategorySummary, 0, len(labels))
	for _, label := range labels {
		summaries = append(summaries, models.CategorySummary{
			Type:    label,
			Average: Average(buckets[label]),
			Count:   len(buckets[label]),
		})
	}
	return summaries
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}
