package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jake-scott/control4-bridge/internal/pkg/director"
	"github.com/jake-scott/control4-bridge/internal/pkg/logging"
	"github.com/jake-scott/control4-bridge/internal/pkg/metrics"
)

// FetchFunc polls the director for one platform's variables
type FetchFunc func(ctx context.Context) (map[int]director.Variables, error)

// Coordinator polls on a fixed interval and holds the last good result.
// The result map is replaced on every successful poll and never modified
// in place, so readers may keep what Data returns.
type Coordinator struct {
	name     string
	interval time.Duration
	fetch    FetchFunc

	pollMu sync.Mutex

	mu         sync.RWMutex
	data       map[int]director.Variables
	lastErr    error
	lastUpdate time.Time
	listeners  []func()

	trigger chan struct{}
}

func New(name string, interval time.Duration, fetch FetchFunc) *Coordinator {
	return &Coordinator{
		name:     name,
		interval: interval,
		fetch:    fetch,
		data:     map[int]director.Variables{},
		trigger:  make(chan struct{}, 1),
	}
}

func (c *Coordinator) Name() string {
	return c.name
}

// Refresh polls now.  On failure the previous data is kept.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()

	start := time.Now()
	data, err := c.fetch(ctx)
	metrics.PollDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	metrics.Polls.WithLabelValues(c.name, metrics.Result(err)).Inc()

	c.mu.Lock()
	c.lastErr = err
	if err == nil {
		if data == nil {
			data = map[int]director.Variables{}
		}
		c.data = data
		c.lastUpdate = time.Now()
	}
	listeners := append([]func(){}, c.listeners...)
	c.mu.Unlock()

	if err != nil {
		return errors.Wrapf(err, "polling %s variables", c.name)
	}

	metrics.LastPollSuccess.WithLabelValues(c.name).SetToCurrentTime()

	for _, l := range listeners {
		l()
	}

	return nil
}

// RequestRefresh asks the run loop for an early poll without waiting for it
func (c *Coordinator) RequestRefresh() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Run polls every interval, and whenever a refresh is requested, until ctx
// is cancelled
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	log := logging.Logger(ctx).WithField("coordinator", c.name)

	for {
		select {
		case <-ctx.Done():
			log.Info("poll-loop: shutting down")
			return
		case <-ticker.C:
		case <-c.trigger:
			log.Debug("poll-loop: refresh requested")
		}

		if err := c.Refresh(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("poll-loop: shutting down")
				return
			}
			log.WithError(err).Error("poll-loop: polling director")
		}
	}
}

// Data returns the last good snapshot
func (c *Coordinator) Data() map[int]director.Variables {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.data
}

func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lastErr == nil && !c.lastUpdate.IsZero()
}

func (c *Coordinator) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lastUpdate
}

func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lastErr
}

// AddListener registers f to be called after every successful poll
func (c *Coordinator) AddListener(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners = append(c.listeners, f)
}
