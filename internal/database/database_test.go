package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestConnectRejectsEmptyURL(t *testing.T) {
	_, err := Connect("")
	require.Error(t, err)
}

func TestConnectSQLiteMemory(t *testing.T) {
	db, err := Connect("sqlite:file::memory:")
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Ping())
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), "redis://"+mr.Addr(), "exam-marker")
	require.NoError(t, err)
	defer client.Close()

	probe := RedisProbe(client)
	require.NoError(t, probe(context.Background()))

	mr.Close()
	require.Error(t, probe(context.Background()))

	_, err = ConnectRedis(context.Background(), "", "")
	require.Error(t, err)

	_, err = ConnectRedis(context.Background(), "://bad", "")
	require.Error(t, err)
}

func TestConnectRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := ConnectRedis(context.Background(), "redis://"+addr, "")
	require.Error(t, err)
}
