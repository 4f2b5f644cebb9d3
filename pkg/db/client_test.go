package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&testModel{}))
	return conn
}

func countRows(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&testModel{}).Count(&count).Error)
	return count
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	ctx := context.Background()
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, countRows(t, db))

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)
	require.EqualValues(t, 1, countRows(t, db))
}

func TestTx_CommitEndsOwnership(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	tx, err := client.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.DB().Create(&testModel{Name: "owned"}).Error)

	require.NoError(t, tx.Commit())
	require.True(t, tx.Done())
	require.ErrorIs(t, tx.Commit(), ErrTxDone)
	require.NoError(t, tx.Rollback(), "rollback after commit must be a no-op")
	require.EqualValues(t, 1, countRows(t, db))
}

func TestTx_DeferredRollbackDiscardsWork(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	func() {
		tx, err := client.Begin(context.Background())
		require.NoError(t, err)
		defer tx.Rollback()
		require.NoError(t, tx.DB().Create(&testModel{Name: "dropped"}).Error)
	}()

	require.EqualValues(t, 0, countRows(t, db))
}

func TestPing(t *testing.T) {
	client := Wrap(newTestDB(t))
	require.NoError(t, client.Ping(context.Background()))
}
