package process

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func skipWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func waitDone(t *testing.T, d *DevServer) {
	t.Helper()
	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("dev server did not exit")
	}
}

func TestNewDevServer_EmptyCommand(t *testing.T) {
	_, err := NewDevServer(nil)
	assert.ErrorIs(t, err, ErrNoCommand)

	_, err = NewDevServer([]string{""})
	assert.ErrorIs(t, err, ErrNoCommand)
}

func TestDevServer_ForwardsOutputAndEnv(t *testing.T) {
	skipWindows(t)

	var out syncBuffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	d, err := NewDevServer(
		[]string{"sh", "-c", `echo "vite ready"; echo "api=$RELAYKIT_API_URL" 1>&2`},
		WithEnv(map[string]string{"RELAYKIT_API_URL": "http://127.0.0.1:8080"}),
		WithLogger(logger),
	)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	assert.ErrorIs(t, d.Start(context.Background()), ErrAlreadyStarted)

	waitDone(t, d)
	assert.NoError(t, d.Err())

	logs := out.String()
	assert.Contains(t, logs, "vite ready")
	assert.Contains(t, logs, "stream=stdout")
	assert.Contains(t, logs, "api=http://127.0.0.1:8080")
	assert.Contains(t, logs, "stream=stderr")
}

func TestDevServer_StartFailure(t *testing.T) {
	d, err := NewDevServer([]string{"relaykit-no-such-binary"})
	require.NoError(t, err)
	assert.Error(t, d.Start(context.Background()))
}

func TestDevServer_Stop(t *testing.T) {
	skipWindows(t)

	d, err := NewDevServer([]string{"sleep", "30"})
	require.NoError(t, err)
	assert.ErrorIs(t, d.Stop(context.Background()), ErrNotStarted)

	require.NoError(t, d.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	waitDone(t, d)
	assert.NoError(t, d.Err())
}

func TestDevServer_WaitReady(t *testing.T) {
	skipWindows(t)

	var hits int
	var mu sync.Mutex
	ready := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		hits++
		if hits < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ready.Close()

	d, err := NewDevServer([]string{"sleep", "30"}, WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)
	assert.ErrorIs(t, d.WaitReady(context.Background(), ready.URL), ErrNotStarted)

	require.NoError(t, d.Start(context.Background()))
	defer d.Stop(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.WaitReady(ctx, ready.URL))

	mu.Lock()
	assert.GreaterOrEqual(t, hits, 3)
	mu.Unlock()
}

func TestDevServer_WaitReadyProcessExited(t *testing.T) {
	skipWindows(t)

	d, err := NewDevServer([]string{"sh", "-c", "exit 3"}, WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// nothing listens on this port
	err = d.WaitReady(ctx, "http://127.0.0.1:1")
	assert.ErrorIs(t, err, ErrExited)
	assert.Error(t, d.Err())
}

func TestDevServer_ContextCancelInterrupts(t *testing.T) {
	skipWindows(t)

	var out syncBuffer
	logger := slog.New(slog.NewTextHandler(&out, nil))
	d, err := NewDevServer(
		[]string{"sh", "-c", `trap 'echo interrupted; exit 0' INT; echo up; while true; do sleep 0.05; done`},
		WithLogger(logger),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Start(ctx))
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "up")
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	waitDone(t, d)
	assert.NoError(t, d.Err())
	assert.Contains(t, out.String(), "interrupted")
}

func TestDevServer_ContextCancelKillsStubbornProcess(t *testing.T) {
	skipWindows(t)

	d, err := NewDevServer([]string{"sh", "-c", `trap '' INT; while true; do sleep 0.05; done`})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Start(ctx))
	time.Sleep(100 * time.Millisecond)
	cancel()

	waitDone(t, d)
}
