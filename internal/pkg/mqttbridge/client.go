package mqttbridge

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jake-scott/control4-bridge/internal/pkg/logging"
)

// MessageHandler receives one inbound message
type MessageHandler func(topic string, payload []byte)

// Publisher is the broker connection the bridge uses
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Close()
}

type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Timeout  time.Duration

	// Published retained as "offline" by the broker if we vanish, and as
	// "online" on every connect
	StatusTopic string
}

// Client is a paho backed Publisher that restores its subscriptions after
// a reconnect
type Client struct {
	client  mqtt.Client
	cfg     ClientConfig
	mu      sync.Mutex
	handles map[string]subscription
	notify  []func()
}

// ErrNotConnected is returned by Publish while the broker is unreachable
var ErrNotConnected = errors.New("mqtt broker not connected")

type subscription struct {
	qos     byte
	handler MessageHandler
}

func Connect(cfg ClientConfig) (*Client, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "control4-bridge-" + uuid.New().String()[:8]
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second * 10
	}

	c := &Client{cfg: cfg, handles: map[string]subscription{}}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(cfg.Timeout)
	opts.SetOrderMatters(false)
	if cfg.StatusTopic != "" {
		opts.SetWill(cfg.StatusTopic, StatusOffline, cfg.QoS, true)
	}
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logging.Logger(nil).WithError(err).Warn("mqtt: connection lost")
	})

	c.client = mqtt.NewClient(opts)

	token := c.client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		logging.Logger(nil).Warnf("mqtt: broker %s not reachable yet, retrying in the background", cfg.Broker)
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "connecting to mqtt broker %s", cfg.Broker)
	}

	return c, nil
}

func (c *Client) onConnect(_ mqtt.Client) {
	logging.Logger(nil).Infof("mqtt: connected to %s", c.cfg.Broker)

	if c.cfg.StatusTopic != "" {
		if err := c.Publish(c.cfg.StatusTopic, c.cfg.QoS, true, []byte(StatusOnline)); err != nil {
			logging.Logger(nil).WithError(err).Warn("mqtt: publishing availability")
		}
	}

	c.mu.Lock()
	subs := make(map[string]subscription, len(c.handles))
	for topic, s := range c.handles {
		subs[topic] = s
	}
	c.mu.Unlock()

	for topic, s := range subs {
		if err := c.subscribe(topic, s); err != nil {
			logging.Logger(nil).WithError(err).Errorf("mqtt: resubscribing to %s", topic)
		}
	}

	c.mu.Lock()
	notify := append([]func(){}, c.notify...)
	c.mu.Unlock()

	for _, f := range notify {
		f()
	}
}

// NotifyOnConnect registers f to run after every (re)connect
func (c *Client) NotifyOnConnect(f func()) {
	c.mu.Lock()
	c.notify = append(c.notify, f)
	c.mu.Unlock()
}

// Publish fails straight away with ErrNotConnected rather than queueing
// while the broker is down
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return errors.Wrapf(ErrNotConnected, "publishing to %s", topic)
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(c.cfg.Timeout) {
		return errors.Errorf("publishing to %s: timed out", topic)
	}

	return errors.Wrapf(token.Error(), "publishing to %s", topic)
}

func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	s := subscription{qos: qos, handler: handler}

	c.mu.Lock()
	c.handles[topic] = s
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		// onConnect subscribes once the broker is reachable
		return nil
	}

	return c.subscribe(topic, s)
}

func (c *Client) subscribe(topic string, s subscription) error {
	token := c.client.Subscribe(topic, s.qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.cfg.Timeout) {
		return errors.Errorf("subscribing to %s: timed out", topic)
	}

	return errors.Wrapf(token.Error(), "subscribing to %s", topic)
}

// Close marks the bridge offline and disconnects
func (c *Client) Close() {
	if c.cfg.StatusTopic != "" && c.client.IsConnectionOpen() {
		if err := c.Publish(c.cfg.StatusTopic, c.cfg.QoS, true, []byte(StatusOffline)); err != nil {
			logging.Logger(nil).WithError(err).Warn("mqtt: publishing availability")
		}
	}

	c.client.Disconnect(250)
}
