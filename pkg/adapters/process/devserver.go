// Package process launches the UI dev server that live mode navigates to.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/relaykit/internal/logging"
)

// DefaultPollInterval is how often WaitReady probes the dev server.
const DefaultPollInterval = 200 * time.Millisecond

const waitDelay = 2 * time.Second

var (
	ErrNoCommand      = errors.New("dev server command is empty")
	ErrAlreadyStarted = errors.New("dev server already started")
	ErrNotStarted     = errors.New("dev server not started")
	ErrExited         = errors.New("dev server exited")
)

// DevServer supervises one external dev server process. Its output is
// forwarded line by line to the logger.
type DevServer struct {
	command string
	args    []string
	dir     string
	env     map[string]string
	logger  *slog.Logger
	poll    time.Duration
	client  *http.Client

	mu       sync.Mutex
	cmd      *exec.Cmd
	done     chan struct{}
	err      error
	stopping bool
}

// Option configures a DevServer.
type Option func(*DevServer)

// WithDir sets the working directory of the process.
func WithDir(dir string) Option {
	return func(d *DevServer) {
		d.dir = dir
	}
}

// WithEnv adds variables to the inherited environment.
func WithEnv(env map[string]string) Option {
	return func(d *DevServer) {
		for k, v := range env {
			d.env[k] = v
		}
	}
}

// WithLogger sets the logger receiving process output.
func WithLogger(l *slog.Logger) Option {
	return func(d *DevServer) {
		d.logger = l
	}
}

// WithPollInterval sets the WaitReady probe interval.
func WithPollInterval(p time.Duration) Option {
	return func(d *DevServer) {
		if p > 0 {
			d.poll = p
		}
	}
}

// NewDevServer prepares argv[0] with the remaining elements as arguments.
func NewDevServer(argv []string, opts ...Option) (*DevServer, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrNoCommand
	}
	d := &DevServer{
		command: argv[0],
		args:    append([]string(nil), argv[1:]...),
		env:     make(map[string]string),
		logger:  logging.NewNop(),
		poll:    DefaultPollInterval,
		client:  &http.Client{Timeout: 2 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start launches the process. It is bound to ctx: cancelling ctx interrupts it
// like Stop, and kills it if it is still running after a grace period.
func (d *DevServer) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd != nil {
		return ErrAlreadyStarted
	}

	cmd := exec.CommandContext(ctx, d.command, d.args...)
	cmd.Dir = d.dir
	cmd.Env = append(cmd.Environ(), d.environ()...)

	stdout := &lineWriter{logger: d.logger, stream: "stdout"}
	stderr := &lineWriter{logger: d.logger, stream: "stderr"}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Cancel = func() error {
		d.mu.Lock()
		d.stopping = true
		d.mu.Unlock()
		return interrupt(cmd.Process)
	}
	// children of the dev server may hold the output open after it exits
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start dev server %q: %w", d.command, err)
	}

	d.cmd = cmd
	d.done = make(chan struct{})
	d.logger.Info("dev server started", "command", d.command, "pid", cmd.Process.Pid)

	go func() {
		err := cmd.Wait()
		stdout.flush()
		stderr.flush()
		d.mu.Lock()
		if d.stopping {
			err = nil
		}
		d.err = err
		d.mu.Unlock()
		d.logger.Info("dev server exited", "command", d.command, "err", err)
		close(d.done)
	}()
	return nil
}

func (d *DevServer) environ() []string {
	keys := make([]string, 0, len(d.env))
	for k := range d.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+d.env[k])
	}
	return out
}

// lineWriter logs every complete line written to it.
type lineWriter struct {
	mu     sync.Mutex
	logger *slog.Logger
	stream string
	buf    []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) emit(line []byte) {
	text := strings.TrimRight(string(line), "\r")
	if text == "" {
		return
	}
	w.logger.Info(text, "source", "dev-server", "stream", w.stream)
}

// Done is closed once the process has exited.
func (d *DevServer) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Err returns the exit error after Done is closed. A process ended by Stop or
// by cancelling the Start context reports nil.
func (d *DevServer) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// WaitReady polls url until it answers with a non-5xx status, the process
// exits, or ctx ends.
func (d *DevServer) WaitReady(ctx context.Context, url string) error {
	done := d.Done()
	if done == nil {
		return ErrNotStarted
	}

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()
	for {
		if d.probe(ctx, url) {
			d.logger.Info("dev server ready", "url", url)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			if err := d.Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrExited, err)
			}
			return ErrExited
		case <-ticker.C:
		}
	}
}

func (d *DevServer) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// interrupt asks p to exit, falling back to Kill. Windows has no SIGINT for
// child processes.
func interrupt(p *os.Process) error {
	if runtime.GOOS == "windows" {
		return p.Kill()
	}
	if err := p.Signal(os.Interrupt); err != nil {
		return p.Kill()
	}
	return nil
}

// Stop interrupts the process and waits for it to exit. If ctx ends first
// the process is killed.
func (d *DevServer) Stop(ctx context.Context) error {
	d.mu.Lock()
	cmd, done := d.cmd, d.done
	if cmd == nil {
		d.mu.Unlock()
		return ErrNotStarted
	}
	d.stopping = true
	d.mu.Unlock()

	select {
	case <-done:
		return d.Err()
	default:
	}

	_ = interrupt(cmd.Process)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	}
}
