package mqttbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/korovkin/limiter"
	"github.com/pkg/errors"

	"github.com/jake-scott/control4-bridge/internal/pkg/logging"
	"github.com/jake-scott/control4-bridge/internal/pkg/media"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Config controls topic layout and command handling
type Config struct {
	Prefix         string
	QoS            byte
	MaxConcurrent  int
	CommandTimeout time.Duration
}

// StatusTopic is the retained availability topic for prefix
func StatusTopic(prefix string) string {
	return prefix + "/status"
}

type commandMessage struct {
	entityID string
	payload  []byte
}

type discovery struct {
	UniqueID          string           `json:"unique_id"`
	Name              string           `json:"name"`
	Platform          string           `json:"platform"`
	EnabledByDefault  bool             `json:"enabled_by_default"`
	SupportedFeatures []string         `json:"supported_features"`
	SourceList        []string         `json:"source_list,omitempty"`
	Device            media.DeviceInfo `json:"device"`
	StateTopic        string           `json:"state_topic"`
	CommandTopic      string           `json:"command_topic"`
	AvailabilityTopic string           `json:"availability_topic"`
}

// Bridge mirrors entity state to MQTT and runs commands received on the
// per-entity set topics
type Bridge struct {
	pub      Publisher
	registry *media.Registry
	cfg      Config

	mu         sync.Mutex
	last       map[string][]byte
	configSent map[string]bool

	dirty    chan struct{}
	commands chan commandMessage
}

// connectNotifier is implemented by publishers that can report a
// (re)connect to the broker
type connectNotifier interface {
	NotifyOnConnect(f func())
}

func New(pub Publisher, registry *media.Registry, cfg Config) *Bridge {
	if cfg.Prefix == "" {
		cfg.Prefix = "control4"
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 4
	}

	return &Bridge{
		pub:        pub,
		registry:   registry,
		cfg:        cfg,
		last:       map[string][]byte{},
		configSent: map[string]bool{},
		dirty:      make(chan struct{}, 1),
		commands:   make(chan commandMessage, 32),
	}
}

func (b *Bridge) topic(entityID string, leaf string) string {
	return b.cfg.Prefix + "/" + entityID + "/" + leaf
}

// entityFromTopic extracts the entity id from <prefix>/<id>/set
func (b *Bridge) entityFromTopic(topic string) (string, bool) {
	rest := strings.TrimPrefix(topic, b.cfg.Prefix+"/")
	if rest == topic {
		return "", false
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "set" || parts[0] == "" {
		return "", false
	}

	return parts[0], true
}

// Start hooks state publishing onto every coordinator and subscribes to the
// command topics.  Nothing here waits on the broker: publishing happens in
// the background once Run is going.
func (b *Bridge) Start(ctx context.Context) error {
	for _, platform := range b.registry.Platforms() {
		if platform.Coordinator != nil {
			platform.Coordinator.AddListener(b.markDirty)
		}
	}

	if n, ok := b.pub.(connectNotifier); ok {
		n.NotifyOnConnect(b.Resync)
	}
	b.markDirty()

	return b.pub.Subscribe(b.cfg.Prefix+"/+/set", b.cfg.QoS, func(topic string, payload []byte) {
		entityID, ok := b.entityFromTopic(topic)
		if !ok {
			logging.Logger(nil).Debugf("mqtt: ignoring message on %s", topic)
			return
		}

		select {
		case <-ctx.Done():
		case b.commands <- commandMessage{entityID: entityID, payload: payload}:
		}
	})
}

// markDirty asks the publish loop for a pass without waiting for it
func (b *Bridge) markDirty() {
	select {
	case b.dirty <- struct{}{}:
	default:
	}
}

// Resync forgets what has been published so the next pass sends every
// config and state again
func (b *Bridge) Resync() {
	b.mu.Lock()
	b.last = map[string][]byte{}
	b.configSent = map[string]bool{}
	b.mu.Unlock()

	b.markDirty()
}

// publishAll sends pending configs and changed states.  The pass stops at
// the first failure; the next poll or reconnect starts another.
func (b *Bridge) publishAll() {
	for _, p := range b.registry.All() {
		id := p.UniqueID()

		b.mu.Lock()
		sent := b.configSent[id]
		b.mu.Unlock()

		if !sent {
			if err := b.publishConfig(p); err != nil {
				logging.Logger(nil).WithError(err).Warnf("mqtt: publishing config of %s", p.Name())
				return
			}

			b.mu.Lock()
			b.configSent[id] = true
			b.mu.Unlock()
		}

		if err := b.PublishState(p); err != nil {
			logging.Logger(nil).WithError(err).Warnf("mqtt: publishing state of %s", p.Name())
			return
		}
	}
}

func (b *Bridge) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.dirty:
			b.publishAll()
		}
	}
}

func (b *Bridge) publishConfig(p media.Player) error {
	id := p.UniqueID()
	payload, err := json.Marshal(discovery{
		UniqueID:          id,
		Name:              p.Name(),
		Platform:          p.Platform(),
		EnabledByDefault:  p.EnabledByDefault(),
		SupportedFeatures: p.SupportedFeatures().Names(),
		SourceList:        p.SourceList(),
		Device:            p.DeviceInfo(),
		StateTopic:        b.topic(id, "state"),
		CommandTopic:      b.topic(id, "set"),
		AvailabilityTopic: StatusTopic(b.cfg.Prefix),
	})
	if err != nil {
		return errors.Wrapf(err, "encoding config for %s", id)
	}

	return b.pub.Publish(b.topic(id, "config"), b.cfg.QoS, true, payload)
}

// PublishState publishes p's snapshot when it differs from the last one sent
func (b *Bridge) PublishState(p media.Player) error {
	id := p.UniqueID()

	payload, err := json.Marshal(media.TakeSnapshot(p))
	if err != nil {
		return errors.Wrapf(err, "encoding state for %s", id)
	}

	b.mu.Lock()
	unchanged := bytes.Equal(b.last[id], payload)
	b.mu.Unlock()
	if unchanged {
		return nil
	}

	if err := b.pub.Publish(b.topic(id, "state"), b.cfg.QoS, true, payload); err != nil {
		return err
	}

	b.mu.Lock()
	b.last[id] = payload
	b.mu.Unlock()

	return nil
}

// Run publishes state in the background and executes received commands,
// at most MaxConcurrent at once, until ctx is cancelled and the in-flight
// commands are done
func (b *Bridge) Run(ctx context.Context) {
	limit := limiter.NewConcurrencyLimiter(b.cfg.MaxConcurrent)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.publishLoop(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			logging.Logger(nil).Info("mqtt-command-loop: shutting down")
			limit.Wait()
			wg.Wait()
			logging.Logger(nil).Info("mqtt-command-loop: done")
			return

		case msg := <-b.commands:
			limit.ExecuteWithTicket(func(ticket int) {
				b.handleCommand(ctx, ticket, msg)
			})
		}
	}
}

func (b *Bridge) handleCommand(ctx context.Context, ticket int, msg commandMessage) {
	log := logging.Logger(ctx).WithField("entity", msg.entityID)
	log.Debugf("mqtt-command-goroutine %d: got %s", ticket, msg.payload)

	p, ok := b.registry.Get(msg.entityID)
	if !ok {
		log.Warn("mqtt: command for unknown entity")
		return
	}

	var cmd media.Command
	if err := json.Unmarshal(msg.payload, &cmd); err != nil {
		log.WithError(err).Warn("mqtt: decoding command")
		return
	}

	if b.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.CommandTimeout)
		defer cancel()
	}

	if err := media.Dispatch(ctx, p, cmd, "mqtt"); err != nil {
		log.WithError(err).Error("mqtt: executing command")
		return
	}

	log.Debugf("mqtt-command-goroutine %d: done", ticket)
}
