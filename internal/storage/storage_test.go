package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteKV(t *testing.T) *SQL {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a second pooled connection would see a different in-memory database
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&KVEntry{}))
	return NewSQL(db)
}

func newRedisKV(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb), mr
}

func TestKV_Contract(t *testing.T) {
	backends := map[string]func(t *testing.T) KV{
		"memory": func(_ *testing.T) KV { return NewMemory() },
		"redis": func(t *testing.T) KV {
			kv, _ := newRedisKV(t)
			return kv
		},
		"sql": func(t *testing.T) KV { return newSQLiteKV(t) },
	}

	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := build(t)
			assert.Equal(t, name, kv.Backend())
			require.NoError(t, kv.Ping(ctx))

			_, err := kv.Get(ctx, "jobPosts")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Set(ctx, "jobPosts", []byte(`[{"id":"a"}]`)))
			got, err := kv.Get(ctx, "jobPosts")
			require.NoError(t, err)
			assert.Equal(t, `[{"id":"a"}]`, string(got))

			require.NoError(t, kv.Set(ctx, "jobPosts", []byte(`[]`)))
			got, err = kv.Get(ctx, "jobPosts")
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(got))

			_, err = kv.Get(ctx, "jobPosts:hidden")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemory_CopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	value := []byte("abc")
	require.NoError(t, kv.Set(ctx, "k", value))
	value[0] = 'z'

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'z'
	again, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestRedis_StoresWithoutTTL(t *testing.T) {
	kv, mr := newRedisKV(t)
	require.NoError(t, kv.Set(context.Background(), "jobPosts", []byte("[]")))
	assert.Equal(t, int64(0), int64(mr.TTL("jobPosts")))
}

func TestRedis_ServerDown(t *testing.T) {
	kv, mr := newRedisKV(t)
	mr.Close()

	_, err := kv.Get(context.Background(), "jobPosts")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))

	assert.Error(t, kv.Set(context.Background(), "jobPosts", []byte("[]")))
	assert.Error(t, kv.Ping(context.Background()))
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock
}

func TestSQL_QueryErrorIsNotNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	kv := NewSQL(db)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))

	_, err := kv.Get(context.Background(), "jobPosts")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_SetError(t *testing.T) {
	db, mock := setupMockDB(t)
	kv := NewSQL(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := kv.Set(context.Background(), "jobPosts", []byte("[]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
