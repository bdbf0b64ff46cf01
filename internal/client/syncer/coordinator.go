package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/jotflow/jotflow/internal/logging"
)

const probeTimeout = 3 * time.Second

// Pinger probes reachability of the remote store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Coordinator watches connectivity and drains the registered replayers
// when the remote store becomes reachable again. Replays are
// serialized: one drain pass runs at a time.
type Coordinator struct {
	pinger        Pinger
	log           logging.Logger
	checkInterval time.Duration
	pollInterval  time.Duration

	mu        sync.Mutex
	replayers []Replayer
	online    bool
	syncing   bool
	pending   int
}

// NewCoordinator returns a stopped coordinator. checkInterval paces the
// reachability probe, pollInterval the pending-count refresh.
func NewCoordinator(pinger Pinger, checkInterval, pollInterval time.Duration, log logging.Logger) *Coordinator {
	if log == nil {
		log = logging.Nop()
	}
	return &Coordinator{
		pinger:        pinger,
		log:           log,
		checkInterval: checkInterval,
		pollInterval:  pollInterval,
	}
}

// Register adds a replayer. Drain order is registration order, so
// register the record queue before the calendar queue.
func (c *Coordinator) Register(r Replayer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replayers = append(c.replayers, r)
}

// Start launches the watcher goroutine. It stops when ctx is cancelled.
func (c *Coordinator) Start(ctx context.Context) {
	go c.watch(ctx)
}

func (c *Coordinator) watch(ctx context.Context) {
	check := time.NewTicker(c.checkInterval)
	defer check.Stop()
	poll := time.NewTicker(c.pollInterval)
	defer poll.Stop()

	c.probe(ctx)
	c.refreshPending(ctx)

	for {
		select {
		case <-check.C:
			c.probe(ctx)
		case <-poll.C:
			c.refreshPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// probe pings the remote store and, on an offline-to-online transition,
// drains the queues.
func (c *Coordinator) probe(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := c.pinger.Ping(pctx)
	cancel()

	c.mu.Lock()
	was := c.online
	c.online = err == nil
	now := c.online
	c.mu.Unlock()

	switch {
	case !was && now:
		c.log.Info(ctx, "remote store reachable, replaying queued operations")
		if serr := c.Sync(ctx); serr != nil {
			c.log.Warn(ctx, "replay incomplete", "error", serr)
		}
	case was && !now:
		c.log.Info(ctx, "remote store unreachable, entering offline mode", "error", err)
	}
}

// Sync drains every registered replayer once, each strictly FIFO. A
// failure halts that replayer's pass but the remaining replayers still
// run: a stuck calendar queue must not block record sync. Returns the
// first failure. Concurrent calls coalesce into the running pass.
func (c *Coordinator) Sync(ctx context.Context) error {
	c.mu.Lock()
	if c.syncing {
		c.mu.Unlock()
		return nil
	}
	c.syncing = true
	replayers := make([]Replayer, len(c.replayers))
	copy(replayers, c.replayers)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.syncing = false
		c.mu.Unlock()
		c.refreshPending(ctx)
	}()

	var firstErr error
	for _, r := range replayers {
		if err := r.Replay(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Online reports the last probed connectivity state.
func (c *Coordinator) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// Syncing reports whether a drain pass is running.
func (c *Coordinator) Syncing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncing
}

// PendingCount returns the total queued operations as of the last
// refresh.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Coordinator) refreshPending(ctx context.Context) {
	c.mu.Lock()
	replayers := make([]Replayer, len(c.replayers))
	copy(replayers, c.replayers)
	c.mu.Unlock()

	total := 0
	for _, r := range replayers {
		total += r.Pending(ctx)
	}

	c.mu.Lock()
	c.pending = total
	c.mu.Unlock()
}
