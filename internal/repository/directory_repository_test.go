package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryRepositoryFindStudent(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer raw.Close()
	repo := NewDirectoryRepository(sqlx.NewDb(raw, "sqlmock"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, first_names, last_names, national_id FROM students WHERE id = $1")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_names", "last_names", "national_id"}).AddRow("stu-1", "Ana", "Lopez", "V-1"))

	student, err := repo.FindStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "Lopez", student.LastNames)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryRepositoryFindSubjectMissing(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer raw.Close()
	repo := NewDirectoryRepository(sqlx.NewDb(raw, "sqlmock"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM subjects WHERE id = $1")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindSubject(context.Background(), "nope")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
