package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestPingRedis(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectPing().SetVal("PONG")

		err := pingRedis(context.Background(), client, time.Second)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectPing().SetErr(errors.New("connection refused"))

		err := pingRedis(context.Background(), client, 0)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to ping Redis")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
