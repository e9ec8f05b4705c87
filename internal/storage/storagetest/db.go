// Package storagetest opens throwaway databases for package tests.
package storagetest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"socialnet/internal/models"
	"socialnet/internal/storage"
)

// NewDB returns a migrated SQLite database living in the test's temp dir.
// A single connection keeps SQLite writers from tripping over each other; callers
// must not use the outer handle while one of its transactions is open.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "socialnet.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, storage.AutoMigrateTables(db))
	return db
}

// PreemptConversationInsert makes the next conversation insert lose its race: a rival row
// for the same pair is written on the same connection right before it. The returned func
// reports whether the rival was written.
func PreemptConversationInsert(t testing.TB, db *gorm.DB) func() bool {
	t.Helper()

	var fired bool
	err := db.Callback().Create().Before("gorm:create").Register("storagetest:preempt_conversation", func(tx *gorm.DB) {
		candidate, ok := tx.Statement.Dest.(*models.Conversation)
		if !ok || fired {
			return
		}
		fired = true
		rival := &models.Conversation{UserLowID: candidate.UserLowID, UserHighID: candidate.UserHighID}
		if err := tx.Session(&gorm.Session{NewDB: true}).Create(rival).Error; err != nil {
			_ = tx.AddError(err)
		}
	})
	require.NoError(t, err)
	return func() bool { return fired }
}
