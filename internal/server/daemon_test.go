package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSendPathIsDeliveredToHandler(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	received := make(chan string, 4)
	d := New(sockPath, 0, func(path string) {
		received <- path
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveErr := make(chan error, 1)
	go func() { serveErr <- d.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		conn, ok := TryConnect(sockPath)
		if ok {
			conn.Close()
		}
		return ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, SendPath(sockPath, "/var/log/app.log"))

	select {
	case got := <-received:
		require.Equal(t, "/var/log/app.log", got)
	case <-time.After(time.Second):
		t.Fatal("handler never received the forwarded path")
	}

	cancel()
	require.NoError(t, <-serveErr)
}

func TestSendPathWithNoPrimaryFails(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "absent.sock")
	_, ok := TryConnect(sockPath)
	require.False(t, ok)
	require.Error(t, SendPath(sockPath, "/var/log/app.log"))
}

func TestCloseIsIdempotentAndRemovesSocket(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	d := New(sockPath, 0, func(string) {}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- d.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		conn, ok := TryConnect(sockPath)
		if ok {
			conn.Close()
		}
		return ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close()) // idempotent
	cancel()
	require.NoError(t, <-serveErr)
}
