// backend/internal/application/notify/dispatcher.go
package notify

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	notifdom "assetmarket/internal/domain/notification"
)

// Sender performs one delivery attempt for a notification.
type Sender interface {
	Send(ctx context.Context, n notifdom.Notification) error
}

// ErrorHandler receives every failed delivery. It never reaches the caller
// that triggered the notification.
type ErrorHandler func(n notifdom.Notification, err error)

var ErrDispatcherClosed = errors.New("notify: dispatcher is closed")

type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

func (c Config) normalized() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// Dispatcher is a bounded task queue for fire-and-forget notifications.
// Dispatch never blocks; workers deliver with a detached context and a
// per-task timeout; Close drains whatever is still queued.
type Dispatcher struct {
	sender  Sender
	cfg     Config
	onError ErrorHandler

	tasks chan notifdom.Notification
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sender Sender, cfg Config, onError ErrorHandler) *Dispatcher {
	cfg = cfg.normalized()
	if onError == nil {
		onError = LogError
	}
	d := &Dispatcher{
		sender:  sender,
		cfg:     cfg,
		onError: onError,
		tasks:   make(chan notifdom.Notification, cfg.QueueSize),
	}
	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}
	log.Printf("[notify] dispatcher started workers=%d queue=%d timeout=%s", cfg.Workers, cfg.QueueSize, cfg.Timeout)
	return d
}

// LogError is the default ErrorHandler.
func LogError(n notifdom.Notification, err error) {
	log.Printf("[notify] delivery failed kind=%s recipient=%q err=%v", n.Kind, n.Recipient, err)
}

// Dispatch enqueues n and returns immediately.
func (d *Dispatcher) Dispatch(n notifdom.Notification) {
	if d == nil {
		return
	}
	if err := n.Validate(); err != nil {
		d.onError(n, err)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.onError(n, ErrDispatcherClosed)
		return
	}
	select {
	case d.tasks <- n:
	default:
		d.onError(n, errors.New("notify: queue full, notification dropped"))
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for n := range d.tasks {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n notifdom.Notification) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[notify] PANIC in sender kind=%s recipient=%q: %v", n.Kind, n.Recipient, rec)
		}
	}()
	if d.sender == nil {
		d.onError(n, errors.New("notify: sender is nil"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	start := time.Now()
	if err := d.sender.Send(ctx, n); err != nil {
		d.onError(n, err)
		return
	}
	log.Printf("[notify] delivered kind=%s recipient=%q elapsed=%s", n.Kind, n.Recipient, time.Since(start))
}

// Close stops accepting notifications and waits for queued ones to be
// delivered, or for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.tasks)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Printf("[notify] dispatcher drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
