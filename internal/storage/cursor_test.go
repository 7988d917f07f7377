package storage

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestRedisCursorStore(t *testing.T) {
	ctx := context.Background()

	t.Run("load returns zero when nothing saved", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewRedisCursorStore(client)

		mock.ExpectGet(cursorKey).RedisNil()

		cursor, err := store.Load(ctx)
		assert.NoError(t, err)
		assert.Equal(t, int64(0), cursor)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("save then load round-trips", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewRedisCursorStore(client)

		mock.ExpectSet(cursorKey, "42", 0).SetVal("OK")
		mock.ExpectGet(cursorKey).SetVal("42")

		assert.NoError(t, store.Save(ctx, 42))

		cursor, err := store.Load(ctx)
		assert.NoError(t, err)
		assert.Equal(t, int64(42), cursor)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt value surfaces an error", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewRedisCursorStore(client)

		mock.ExpectGet(cursorKey).SetVal("not-a-number")

		_, err := store.Load(ctx)
		assert.Error(t, err)
	})

	t.Run("nil client falls back to memory", func(t *testing.T) {
		store := NewRedisCursorStore(nil)

		cursor, err := store.Load(ctx)
		assert.NoError(t, err)
		assert.Equal(t, int64(0), cursor)

		assert.NoError(t, store.Save(ctx, 99))

		cursor, err = store.Load(ctx)
		assert.NoError(t, err)
		assert.Equal(t, int64(99), cursor)
	})
}
