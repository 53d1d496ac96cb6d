package walloffame

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "deligma/pkg/errors"
	"deligma/pkg/persistence"
)

var (
	memberCols      = []string{"id", "name", "image", "description", "display_order", "active", "created_at", "updated_at"}
	achievementCols = []string{"id", "member_id", "text", "position"}
	fixedTime       = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newMockStore(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(persistence.New(db)), mock
}

func memberRows(id uuid.UUID, name string, image any, order int, active bool) *sqlmock.Rows {
	return sqlmock.NewRows(memberCols).
		AddRow(id.String(), name, image, "", order, active, fixedTime, fixedTime)
}

func expectAggregateRead(mock sqlmock.Sqlmock, member *sqlmock.Rows, achievements *sqlmock.Rows) {
	mock.ExpectQuery(`SELECT id, name, image, description, display_order, active, created_at, updated_at FROM fame_members WHERE id = \$1`).
		WillReturnRows(member)
	mock.ExpectQuery(`FROM fame_achievements`).WillReturnRows(achievements)
}

func TestCreateMemberRejectsBlankName(t *testing.T) {
	for _, name := range []string{"", "   "} {
		s, mock := newMockStore(t)

		_, err := s.CreateMember(context.Background(), MemberInput{Name: name})

		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
		assert.NoError(t, mock.ExpectationsWereMet(), "no statement may run for %q", name)
	}
}

func TestCreateMemberSkipsBlankAchievements(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO fame_members`).
		WithArgs(sqlmock.AnyArg(), "Ana Torres", nil, "", 0, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO fame_achievements`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Primer lugar", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO fame_achievements`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Mención honorífica", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id := uuid.New()
	expectAggregateRead(mock,
		memberRows(id, "Ana Torres", nil, 0, true),
		sqlmock.NewRows(achievementCols).
			AddRow(uuid.NewString(), id.String(), "Primer lugar", 1).
			AddRow(uuid.NewString(), id.String(), "Mención honorífica", 2))
	mock.ExpectCommit()

	m, err := s.CreateMember(context.Background(), MemberInput{
		Name:         "  Ana Torres ",
		Achievements: []string{" Primer lugar ", "", "   ", "Mención honorífica"},
	})

	require.NoError(t, err)
	require.Len(t, m.Achievements, 2)
	assert.Equal(t, 1, m.Achievements[0].Position)
	assert.Equal(t, 2, m.Achievements[1].Position)
	assert.True(t, m.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMemberRollsBackWhenAchievementInsertFails(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO fame_members`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO fame_achievements`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.CreateMember(context.Background(), MemberInput{Name: "Ana", Achievements: []string{"x"}})

	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMemberScalarPatchLeavesAchievements(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE fame_members SET display_order = $1, updated_at = NOW() WHERE id = $2`)).
		WithArgs(5, id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectAggregateRead(mock,
		memberRows(id, "Ana", nil, 5, true),
		sqlmock.NewRows(achievementCols).AddRow(uuid.NewString(), id.String(), "Primer lugar", 1))
	mock.ExpectCommit()

	m, err := s.UpdateMember(context.Background(), id, MemberPatch{DisplayOrder: Some(5)})

	require.NoError(t, err)
	assert.Equal(t, 5, m.DisplayOrder)
	assert.Equal(t, "Ana", m.Name)
	assert.Len(t, m.Achievements, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMemberReplacesAchievements(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE fame_members SET updated_at = NOW() WHERE id = $1`)).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM fame_achievements WHERE member_id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 5))
	for i, text := range []string{"a", "b", "c"} {
		mock.ExpectExec(`INSERT INTO fame_achievements`).
			WithArgs(sqlmock.AnyArg(), id, text, i+1).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	expectAggregateRead(mock,
		memberRows(id, "Ana", nil, 0, true),
		sqlmock.NewRows(achievementCols).
			AddRow(uuid.NewString(), id.String(), "a", 1).
			AddRow(uuid.NewString(), id.String(), "b", 2).
			AddRow(uuid.NewString(), id.String(), "c", 3))
	mock.ExpectCommit()

	m, err := s.UpdateMember(context.Background(), id, MemberPatch{Achievements: Some([]string{"a", "b", "c"})})

	require.NoError(t, err)
	require.Len(t, m.Achievements, 3)
	for i, a := range m.Achievements {
		assert.Equal(t, i+1, a.Position)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMemberInsertsBlankEntriesVerbatim(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE fame_members`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM fame_achievements`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO fame_achievements`).
		WithArgs(sqlmock.AnyArg(), id, " a ", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO fame_achievements`).
		WithArgs(sqlmock.AnyArg(), id, "", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectAggregateRead(mock, memberRows(id, "Ana", nil, 0, true), sqlmock.NewRows(achievementCols))
	mock.ExpectCommit()

	_, err := s.UpdateMember(context.Background(), id, MemberPatch{Achievements: Some([]string{" a ", ""})})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMemberNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE fame_members`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.UpdateMember(context.Background(), id, MemberPatch{
		Name:         Some("Ana"),
		Achievements: Some([]string{"a"}),
	})

	assert.True(t, pkgerrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMemberRejectsBlankName(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.UpdateMember(context.Background(), uuid.New(), MemberPatch{Name: Some("  ")})

	assert.True(t, pkgerrors.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMember(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM fame_members WHERE id = \$1`).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.DeleteMember(context.Background(), id))

	mock.ExpectExec(`DELETE FROM fame_members WHERE id = \$1`).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
	err := s.DeleteMember(context.Background(), id)
	assert.True(t, pkgerrors.IsNotFound(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleActiveFlipsInOneStatement(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`SET active = NOT active`).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	expectAggregateRead(mock, memberRows(id, "Ana", "muro-1.png", 0, false), sqlmock.NewRows(achievementCols))
	mock.ExpectCommit()

	m, err := s.ToggleActive(context.Background(), id)

	require.NoError(t, err)
	assert.False(t, m.Active)
	assert.Equal(t, "muro-1.png", m.ImageName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleActiveNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SET active = NOT active`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.ToggleActive(context.Background(), uuid.New())

	assert.True(t, pkgerrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReorderIsAllOrNothing(t *testing.T) {
	s, mock := newMockStore(t)
	first, second := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`SET display_order = \$1`).WithArgs(5, first).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SET display_order = \$1`).WithArgs(1, second).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := s.Reorder(context.Background(), []ReorderAssignment{
		{ID: first, DisplayOrder: 5},
		{ID: second, DisplayOrder: 1},
	})

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReorderIgnoresUnknownIDs(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SET display_order = \$1`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.Reorder(context.Background(), []ReorderAssignment{{ID: uuid.New(), DisplayOrder: -3}})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListMembersAttachesAchievementsInOneQuery(t *testing.T) {
	s, mock := newMockStore(t)
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery(`FROM fame_members WHERE active = TRUE ORDER BY display_order ASC, created_at ASC`).
		WillReturnRows(sqlmock.NewRows(memberCols).
			AddRow(b.String(), "Beto", nil, "", 1, true, fixedTime, fixedTime).
			AddRow(a.String(), "Ana", "muro-a.jpg", "", 5, true, fixedTime, fixedTime))
	mock.ExpectQuery(`WHERE member_id = ANY\(\$1::uuid\[\]\)`).
		WillReturnRows(sqlmock.NewRows(achievementCols).
			AddRow(uuid.NewString(), a.String(), "uno", 1).
			AddRow(uuid.NewString(), a.String(), "dos", 2))

	members, err := s.ListMembers(context.Background(), true)

	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, b, members[0].ID)
	assert.Empty(t, members[0].Achievements)
	assert.NotNil(t, members[0].Achievements)
	assert.Equal(t, []string{"uno", "dos"}, []string{members[1].Achievements[0].Text, members[1].Achievements[1].Text})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListMembersEmpty(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM fame_members ORDER BY`).WillReturnRows(sqlmock.NewRows(memberCols))

	members, err := s.ListMembers(context.Background(), false)

	require.NoError(t, err)
	assert.NotNil(t, members)
	assert.Empty(t, members)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMemberNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM fame_members WHERE id`).WillReturnRows(sqlmock.NewRows(memberCols))

	_, err := s.GetMember(context.Background(), uuid.New())

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestCreateMemberRejectsOverlongName(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.CreateMember(context.Background(), MemberInput{Name: strings.Repeat("x", maxNameLength+1)})

	assert.True(t, pkgerrors.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
