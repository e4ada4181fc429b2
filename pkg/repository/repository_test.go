package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"loyaltyhub/pkg/db/option"
)

type widget struct {
	ID        int64      `gorm:"column:id;primaryKey;autoIncrement:false"`
	Owner     string     `gorm:"column:owner;index"`
	Size      int        `gorm:"column:size"`
	RemovedAt *time.Time `gorm:"column:removed_at"`
}

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&widget{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestStoreCreateFindCount(t *testing.T) {
	ctx := context.Background()
	repo := ProvideStore[widget](newDB(t))

	require.NoError(t, repo.Create(ctx, &widget{ID: 1, Owner: "a", Size: 3}))
	require.NoError(t, repo.Create(ctx, &widget{ID: 2, Owner: "a", Size: 7}))
	require.NoError(t, repo.Create(ctx, &widget{ID: 3, Owner: "b", Size: 5}))

	items, err := repo.Find(ctx, &widget{Owner: "a"}, option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}))
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, int64(2), items[0].ID)

	big, err := repo.Find(ctx, nil, option.ApplyOperator(option.Condition{Field: "size", Operator: option.GT, Value: 4}))
	require.NoError(t, err)
	require.Len(t, big, 2)

	count, err := repo.Count(ctx, &widget{Owner: "b"})
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	nullCount, err := repo.Count(ctx, nil, option.ApplyOperator(option.Condition{Field: "removed_at", Operator: option.IsNull}))
	require.NoError(t, err)
	require.Equal(t, int64(3), nullCount)
}

func TestStoreFindOneMissingReturnsNil(t *testing.T) {
	repo := ProvideStore[widget](newDB(t))

	item, err := repo.FindOne(context.Background(), &widget{ID: 42})
	require.NoError(t, err)
	require.Nil(t, item)
}

func TestStoreUpdate(t *testing.T) {
	ctx := context.Background()
	repo := ProvideStore[widget](newDB(t))
	require.NoError(t, repo.Create(ctx, &widget{ID: 1, Owner: "a", Size: 3}))

	require.NoError(t, repo.Update(ctx, int64(1), map[string]any{"size": 9}))

	item, err := repo.FindOne(ctx, &widget{ID: 1})
	require.NoError(t, err)
	require.Equal(t, 9, item.Size)

	err = repo.Update(ctx, int64(99), map[string]any{"size": 1})
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestStoreWithTrxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	repo := ProvideStore[widget](db)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := repo.WithTrx(tx).Create(ctx, &widget{ID: 5, Owner: "tx"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	item, err := repo.FindOne(ctx, &widget{ID: 5})
	require.NoError(t, err)
	require.Nil(t, item)
}
