package behavior

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestRedisStore_Behavior(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := &RedisStore{client: db}
	ctx := context.TODO()

	// Success
	mock.ExpectHGetAll("viewer:v1:regions").SetVal(map[string]string{"naju": "4", "mokpo": "junk"})
	mock.ExpectHGetAll("viewer:v1:categories").SetVal(map[string]string{"culture": "2"})
	behavior, err := store.Behavior(ctx, "v1")
	assert.NoError(t, err)
	assert.Equal(t, map[string]int{"naju": 4}, behavior.RegionViews)
	assert.Equal(t, map[string]int{"culture": 2}, behavior.CategoryViews)

	// Unknown viewer
	mock.ExpectHGetAll("viewer:v2:regions").SetVal(map[string]string{})
	mock.ExpectHGetAll("viewer:v2:categories").SetVal(map[string]string{})
	behavior, err = store.Behavior(ctx, "v2")
	assert.NoError(t, err)
	assert.Empty(t, behavior.RegionViews)

	// Error
	mock.ExpectHGetAll("viewer:v1:regions").SetErr(errors.New("redis error"))
	_, err = store.Behavior(ctx, "v1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis hgetall failure")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRedisStore_RecordView(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := &RedisStore{client: db}
	ctx := context.TODO()

	mock.ExpectHIncrBy("viewer:v1:regions", "naju", 1).SetVal(1)
	mock.ExpectExpire("viewer:v1:regions", retention).SetVal(true)
	mock.ExpectHIncrBy("viewer:v1:categories", "culture", 1).SetVal(3)
	mock.ExpectExpire("viewer:v1:categories", retention).SetVal(true)
	assert.NoError(t, store.RecordView(ctx, "v1", "naju", "culture"))

	// Anonymous viewers are not tracked.
	assert.NoError(t, store.RecordView(ctx, "", "naju", "culture"))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
