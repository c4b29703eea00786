package redis

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/jot/internal/logger"
)

func testOptions(addr string) ConnectOptions {
	return ConnectOptions{
		Addr:           addr,
		DialTimeout:    100 * time.Millisecond,
		ReadTimeout:    100 * time.Millisecond,
		WriteTimeout:   100 * time.Millisecond,
		PoolSize:       2,
		ConnectTimeout: 300 * time.Millisecond,
		RetryInterval:  20 * time.Millisecond,
		MaxWait:        50 * time.Millisecond,
		PingTimeout:    100 * time.Millisecond,
		WarnThreshold:  1,
	}
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), testOptions(mr.Addr()), logger.Nop())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	mr.CheckGet(t, "k", "v")
}

func TestConnectGivesUpAfterTimeout(t *testing.T) {
	// Reserve a port nobody listens on.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	start := time.Now()
	_, err = Connect(context.Background(), testOptions(addr), logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis unavailable")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestConnectRetriesUntilServerStarts(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	go func() {
		time.Sleep(60 * time.Millisecond)
		_ = mr.StartAddr(addr)
	}()
	defer mr.Close()

	opts := testOptions(addr)
	opts.ConnectTimeout = 2 * time.Second
	client, err := Connect(context.Background(), opts, logger.Nop())
	require.NoError(t, err)
	defer client.Close()
}

func TestConnectOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConnectOptions)
	}{
		{"missing addr", func(o *ConnectOptions) { o.Addr = "" }},
		{"zero connect timeout", func(o *ConnectOptions) { o.ConnectTimeout = 0 }},
		{"zero retry interval", func(o *ConnectOptions) { o.RetryInterval = 0 }},
		{"zero max wait", func(o *ConnectOptions) { o.MaxWait = 0 }},
		{"zero ping timeout", func(o *ConnectOptions) { o.PingTimeout = 0 }},
		{"negative warn threshold", func(o *ConnectOptions) { o.WarnThreshold = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions("localhost:6379")
			tt.mutate(&opts)
			_, err := Connect(context.Background(), opts, logger.Nop())
			assert.Error(t, err)
		})
	}
}

func TestMergeEventFlags(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "Ex"},
		{"Ex", "Ex"},
		{"KEA", "KEA"},
		{"Kg", "KgEx"},
		{"Ex$", "Ex$"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mergeEventFlags(tt.in), tt.in)
	}
}
