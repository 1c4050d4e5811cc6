package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/coem-edu/sga-api/internal/models"
)

func TestGradeRepositoryCreateAppliesDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectExec("INSERT INTO grades").
		WillReturnResult(sqlmock.NewResult(1, 1))

	grade := &models.Grade{StudentID: "stu-1", ClassID: "class-1", Value: 8.5}
	err := repo.Create(context.Background(), grade)
	require.NoError(t, err)
	require.NotEmpty(t, grade.ID)
	require.Equal(t, models.DefaultPeriod, grade.Period)
	require.False(t, grade.Date.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryCreateKeepsExplicitPeriod(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectExec("INSERT INTO grades").
		WillReturnResult(sqlmock.NewResult(1, 1))

	grade := &models.Grade{StudentID: "stu-1", ClassID: "class-1", Value: 7, Period: 3}
	err := repo.Create(context.Background(), grade)
	require.NoError(t, err)
	require.Equal(t, 3, grade.Period)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryListByStudentWithFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "value", "description", "type", "period", "date", "created_at", "updated_at"}).
		AddRow("g-1", "stu-1", "class-1", 8.5, nil, "quiz", 1, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE student_id = $1 AND class_id = $2 AND period = $3 AND LOWER(type) = $4")).
		WithArgs("stu-1", "class-1", 1, "quiz").
		WillReturnRows(rows)

	grades, err := repo.ListByStudent(context.Background(), "stu-1", models.GradeFilter{ClassID: "class-1", Period: 1, Type: "Quiz"})
	require.NoError(t, err)
	require.Len(t, grades, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM grades WHERE id = $1")).
		WithArgs("g-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "g-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
