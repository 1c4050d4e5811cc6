package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestClassRepositoryFindActiveBySchedule(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "teacher_id", "name", "location", "schedule", "active", "created_at", "updated_at"}).
		AddRow("class-1", "teacher-1", "Matematicas", "Aula 3", "LUN 08:00-10:00", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE teacher_id = $1 AND schedule = $2 AND active = TRUE")).
		WithArgs("teacher-1", "LUN 08:00-10:00").
		WillReturnRows(rows)

	class, err := repo.FindActiveBySchedule(context.Background(), "teacher-1", "LUN 08:00-10:00", "")
	require.NoError(t, err)
	require.Equal(t, "Matematicas", class.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryFindActiveByScheduleExcludesSelf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND id <> $3")).
		WithArgs("teacher-1", "LUN 08:00-10:00", "class-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveBySchedule(context.Background(), "teacher-1", "LUN 08:00-10:00", "class-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryFindActiveByScheduleNoConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE teacher_id = $1 AND schedule = $2 AND active = TRUE")).
		WithArgs("teacher-1", "MAR 10:00-12:00").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveBySchedule(context.Background(), "teacher-1", "MAR 10:00-12:00", "")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListByTeacherActiveOnly(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "teacher_id", "name", "location", "schedule", "active", "created_at", "updated_at"}).
		AddRow("class-1", "teacher-1", "Historia", "", "", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE teacher_id = $1 AND active = TRUE")).
		WithArgs("teacher-1").
		WillReturnRows(rows)

	classes, err := repo.ListByTeacher(context.Background(), "teacher-1", true)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
