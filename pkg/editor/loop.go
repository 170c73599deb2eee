package editor

import (
	"context"
	"time"
)

// Run drives the owner goroutine until ctx is done or Close is called. All relay and
// attachment mutation happens inside Run.
func (e *Editor) Run(ctx context.Context) error {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return ErrClosed
	case e.running:
		e.mu.Unlock()
		return ErrRunning
	}
	e.running = true
	e.mu.Unlock()

	var tick <-chan time.Time
	var ticker *time.Ticker
	if e.tickRate > 0 {
		ticker = time.NewTicker(time.Duration(float64(time.Second) / e.tickRate))
		tick = ticker.C
	}

	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
		e.mu.Lock()
		e.running = false
		closing := e.closed
		e.mu.Unlock()
		if closing {
			e.drain()
			e.teardown()
			close(e.stopped)
		}
	}()

	e.drain()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.quit:
			return nil
		case <-e.wake:
			e.drain()
		case <-tick:
			e.emitTelemetry()
		}
	}
}

// Post queues fn for the owner goroutine and returns immediately. Work posted after
// Close is dropped.
func (e *Editor) Post(fn func()) {
	e.enqueue(fn)
}

// Do runs fn on the owner goroutine and waits for it to finish.
func (e *Editor) Do(ctx context.Context, fn func()) error {
	return e.call(ctx, func() error {
		fn()
		return nil
	})
}

func (e *Editor) call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if !e.enqueue(func() { result <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		select {
		case err := <-result:
			return err
		default:
			return ErrClosed
		}
	}
}

func (e *Editor) enqueue(fn func()) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	e.queue = append(e.queue, fn)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

func (e *Editor) drain() {
	for {
		e.mu.Lock()
		batch := e.queue
		e.queue = nil
		e.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}

func (e *Editor) emitTelemetry() {
	if e.telemetry == nil {
		return
	}
	if ev, ok := e.telemetry.Telemetry(); ok {
		e.events.Emit(ev.Name, ev.Payload)
	}
}

// Close stops the ticker and tears the editor down in reverse construction order.
// When the owner loop is running, teardown happens on it and Close waits; otherwise
// it runs on the caller. Close is idempotent.
func (e *Editor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.stopped
		return nil
	}
	e.closed = true
	running := e.running
	e.mu.Unlock()

	close(e.quit)
	if running {
		<-e.stopped
		return nil
	}
	e.drain()
	e.teardown()
	close(e.stopped)
	return nil
}
