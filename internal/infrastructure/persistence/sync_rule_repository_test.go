package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/storesync/backend/internal/domain/sync"
)

// newMockSyncRuleRepository creates a GormSyncRuleRepository with a mocked SQL connection
func newMockSyncRuleRepository(t *testing.T) (*GormSyncRuleRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormSyncRuleRepository(gormDB), mock, mockDB
}

func syncRuleRows(ruleID, sourceID, targetID uuid.UUID, conditions, transformations string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "source_store_id", "target_store_id", "kind",
		"conditions", "transformations", "is_active", "schedule",
		"created_at", "updated_at",
	}).AddRow(ruleID, "push products", sourceID, targetID, "PRODUCT",
		conditions, transformations, true, "", now, now)
}

func TestGormSyncRuleRepository_FindByID(t *testing.T) {
	t.Run("finds existing rule", func(t *testing.T) {
		repo, mock, mockDB := newMockSyncRuleRepository(t)
		defer mockDB.Close()

		ruleID := uuid.New()
		sourceID := uuid.New()
		targetID := uuid.New()

		rows := syncRuleRows(ruleID, sourceID, targetID,
			`{"status":{"equals":"active"}}`,
			`{"title":{"template":"[SYNCED] {title}"}}`)

		mock.ExpectQuery(`SELECT \* FROM "sync_rules" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(ruleID, 1).
			WillReturnRows(rows)

		rule, err := repo.FindByID(context.Background(), ruleID)

		assert.NoError(t, err)
		require.NotNil(t, rule)
		assert.Equal(t, ruleID, rule.ID)
		assert.Equal(t, "push products", rule.Name)
		assert.Equal(t, sync.EntityKindProduct, rule.Kind)
		require.Contains(t, rule.Conditions, "status")
		require.NotNil(t, rule.Conditions["status"].Equals)
		assert.Equal(t, "active", *rule.Conditions["status"].Equals)
		require.Contains(t, rule.Transformations, "title")
		require.NotNil(t, rule.Transformations["title"].Template)
		assert.Equal(t, "[SYNCED] {title}", *rule.Transformations["title"].Template)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrRuleNotFound for non-existent rule", func(t *testing.T) {
		repo, mock, mockDB := newMockSyncRuleRepository(t)
		defer mockDB.Close()

		ruleID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "sync_rules" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(ruleID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		rule, err := repo.FindByID(context.Background(), ruleID)

		assert.ErrorIs(t, err, sync.ErrRuleNotFound)
		assert.Nil(t, rule)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("tolerates malformed condition documents", func(t *testing.T) {
		repo, mock, mockDB := newMockSyncRuleRepository(t)
		defer mockDB.Close()

		ruleID := uuid.New()
		rows := syncRuleRows(ruleID, uuid.New(), uuid.New(), `not json`, `{}`)

		mock.ExpectQuery(`SELECT \* FROM "sync_rules" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(ruleID, 1).
			WillReturnRows(rows)

		rule, err := repo.FindByID(context.Background(), ruleID)

		assert.NoError(t, err)
		require.NotNil(t, rule)
		assert.Empty(t, rule.Conditions)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSyncRuleRepository_FindActiveByKind(t *testing.T) {
	repo, mock, mockDB := newMockSyncRuleRepository(t)
	defer mockDB.Close()

	ruleID := uuid.New()
	rows := syncRuleRows(ruleID, uuid.New(), uuid.New(), `{}`, `{}`)

	mock.ExpectQuery(`SELECT \* FROM "sync_rules" WHERE is_active = \$1 AND kind = \$2 ORDER BY created_at ASC`).
		WithArgs(true, sync.EntityKindProduct).
		WillReturnRows(rows)

	rules, err := repo.FindActiveByKind(context.Background(), sync.EntityKindProduct)

	assert.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, ruleID, rules[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormSyncRuleRepository_Delete(t *testing.T) {
	t.Run("deletes existing rule", func(t *testing.T) {
		repo, mock, mockDB := newMockSyncRuleRepository(t)
		defer mockDB.Close()

		ruleID := uuid.New()

		mock.ExpectExec(`DELETE FROM "sync_rules" WHERE id = \$1`).
			WithArgs(ruleID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Delete(context.Background(), ruleID)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrRuleNotFound when nothing deleted", func(t *testing.T) {
		repo, mock, mockDB := newMockSyncRuleRepository(t)
		defer mockDB.Close()

		ruleID := uuid.New()

		mock.ExpectExec(`DELETE FROM "sync_rules" WHERE id = \$1`).
			WithArgs(ruleID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(context.Background(), ruleID)

		assert.ErrorIs(t, err, sync.ErrRuleNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
