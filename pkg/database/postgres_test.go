package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgspace-backend/pkg/models"
)

func newPostgresWithMock(t *testing.T) (*PostgresDatabase, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresDatabase(db), mock
}

var (
	sectionCols = []string{"id", "title", "sort_order", "parent_id", "space_id", "created_by_id", "created_at", "updated_at",
		"children", "items", "u_id", "first_name", "last_name", "username"}
	itemCols = []string{"id", "type", "title", "content", "file_id", "file_name", "file_size", "mime_type",
		"sort_order", "section_id", "space_id", "created_by_id", "created_at", "updated_at",
		"u_id", "first_name", "last_name", "username"}
)

func TestUpsertUser_Success(t *testing.T) {
	p, mock := newPostgresWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+users\s*\(telegram_id,\s*username,\s*first_name,\s*last_name\).*ON\s+CONFLICT\s+\(telegram_id\)`).
		WithArgs(int64(42), "ann", "Ann", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "telegram_id", "username", "first_name", "last_name", "created_at", "updated_at"}).
			AddRow(int64(7), int64(42), "ann", "Ann", "Lee", now, now))

	u, err := p.UpsertUser(context.Background(), models.TelegramProfile{TelegramID: 42, Username: "ann", FirstName: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, "Lee", u.LastName)
}

func TestUpsertUser_DBError(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+users`).WillReturnError(errors.New("db down"))

	_, err := p.UpsertUser(context.Background(), models.TelegramProfile{TelegramID: 42})
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db down`, err.Error())
}

func TestGetUserByID_NotFound(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`(?s)^\s*SELECT\s+id,\s*telegram_id.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := p.GetUserByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindOrCreateSpace(t *testing.T) {
	p, mock := newPostgresWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+spaces\s*\(chat_id,\s*title\).*ON\s+CONFLICT\s+\(chat_id\)`).
		WithArgs(int64(-100555), "Team").
		WillReturnRows(sqlmock.NewRows([]string{"id", "chat_id", "title", "created_at", "updated_at"}).
			AddRow(int64(3), int64(-100555), "Team", now, now))

	s, err := p.FindOrCreateSpace(context.Background(), -100555, "Team")
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.ID)
	assert.Equal(t, int64(-100555), s.ChatID)
}

func TestDeleteSpaceByChatID_Missing(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+spaces\s+WHERE\s+chat_id\s*=\s*\$1`).
		WithArgs(int64(-1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := p.DeleteSpaceByChatID(context.Background(), -1)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestCreateSection_Root(t *testing.T) {
	p, mock := newPostgresWithMock(t)
	now := time.Now()
	creator := int64(7)

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+sections.*COALESCE\(MAX\(sort_order\)\s*\+\s*1,\s*0\).*IS\s+NOT\s+DISTINCT\s+FROM`).
		WithArgs("Docs", nil, int64(3), creator).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sort_order", "created_at", "updated_at"}).AddRow(int64(11), 2, now, now))

	s := &models.Section{Title: "Docs", SpaceID: 3, CreatedByID: &creator}
	require.NoError(t, p.CreateSection(context.Background(), s))
	assert.Equal(t, int64(11), s.ID)
	assert.Equal(t, 2, s.Order)
	assert.Equal(t, &models.SectionCount{}, s.Count)
}

func TestCreateSection_ParentGone(t *testing.T) {
	p, mock := newPostgresWithMock(t)
	parent := int64(99)

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+sections`).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "sections_parent_id_fkey"})

	err := p.CreateSection(context.Background(), &models.Section{Title: "x", SpaceID: 3, ParentID: &parent})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetSection_WithCountsAndAuthor(t *testing.T) {
	p, mock := newPostgresWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)^\s*SELECT\s+s\.id.*FROM\s+sections\s+s\s+LEFT\s+JOIN\s+users\s+u.*WHERE\s+s\.id\s*=\s*\$1`).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(sectionCols).
			AddRow(int64(11), "Docs", 0, int64(4), int64(3), int64(7), now, now, int64(2), int64(5), int64(7), "Ann", "", "ann"))

	s, err := p.GetSection(context.Background(), 11)
	require.NoError(t, err)
	require.NotNil(t, s.ParentID)
	assert.Equal(t, int64(4), *s.ParentID)
	assert.Equal(t, models.SectionCount{Children: 2, Items: 5}, *s.Count)
	require.NotNil(t, s.CreatedBy)
	assert.Equal(t, "ann", s.CreatedBy.Username)
}

func TestListSections_Empty(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`(?s)WHERE\s+s\.space_id\s*=\s*\$1\s+AND\s+s\.parent_id\s+IS\s+NOT\s+DISTINCT\s+FROM.*ORDER\s+BY\s+s\.sort_order`).
		WithArgs(int64(3), nil).
		WillReturnRows(sqlmock.NewRows(sectionCols))

	out, err := p.ListSections(context.Background(), 3, nil)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestMoveSection_NotFound(t *testing.T) {
	p, mock := newPostgresWithMock(t)
	parent := int64(5)

	mock.ExpectExec(`(?s)^\s*UPDATE\s+sections\s+SET\s+parent_id`).
		WithArgs(int64(11), parent).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := p.MoveSection(context.Background(), 11, &parent)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetItem(t *testing.T) {
	p, mock := newPostgresWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)FROM\s+items\s+i\s+LEFT\s+JOIN\s+users\s+u.*WHERE\s+i\.id\s*=\s*\$1`).
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(int64(20), "file", "", "", "BQAC", "a.pdf", int64(1024), "application/pdf",
				1, int64(11), int64(3), nil, now, now, nil, "", "", ""))

	it, err := p.GetItem(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, models.ItemFile, it.Type)
	assert.Equal(t, int64(1024), it.FileSize)
	assert.Nil(t, it.CreatedByID)
	assert.Nil(t, it.CreatedBy)
}

func TestReorderItems_Commit(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^UPDATE\s+items\s+SET\s+sort_order\s*=\s*\$1`).
		WithArgs(0, int64(21), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^UPDATE\s+items\s+SET\s+sort_order\s*=\s*\$1`).
		WithArgs(1, int64(20), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, p.ReorderItems(context.Background(), 11, []int64{21, 20}))
}

func TestReorderItems_ForeignItemRollsBack(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^UPDATE\s+items\s+SET\s+sort_order`).
		WithArgs(0, int64(99), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := p.ReorderItems(context.Background(), 11, []int64{99})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchItems_EscapesWildcards(t *testing.T) {
	p, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`(?s)WHERE\s+i\.space_id\s*=\s*\$1\s+AND\s+\(i\.title\s+ILIKE\s+\$2`).
		WithArgs(int64(3), `%50\%%`, 10).
		WillReturnRows(sqlmock.NewRows(itemCols))

	out, err := p.SearchItems(context.Background(), 3, "50%", 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%abc%", likePattern("abc"))
	assert.Equal(t, `%a\_b\\c%`, likePattern(`a_b\c`))
}

func TestMigrate_UsesEmbeddedDir(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, Migrate(context.Background(), nil))
	assert.Equal(t, ".", gotDir)
}
