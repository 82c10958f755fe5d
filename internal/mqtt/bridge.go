//go:build !no_mqtt

// Package mqtt bridges the device to an MQTT broker: a color set topic in,
// the applied color and a liveness status out.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"ok-to-wake/internal/device"
	"ok-to-wake/internal/events"
	"ok-to-wake/internal/light"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker       string
	Username     string
	Password     string
	TopicPrefix  string
	PingInterval time.Duration
}

// Dispatcher receives parsed commands.
type Dispatcher interface {
	Dispatch(cmd device.Command) (device.Result, error)
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// Bridge connects the device to MQTT.
type Bridge struct {
	client pahomqtt.Client
	pub    publisher
	dev    Dispatcher
	bus    *events.Bus
	prefix string
	ping   time.Duration
	logger *slog.Logger

	unsub  func()
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (b *Bridge) statusTopic() string { return b.prefix + "/status" }
func (b *Bridge) colorTopic() string  { return b.prefix + "/color" }
func (b *Bridge) setTopic() string    { return b.prefix + "/color/set" }

func newBridge(pub publisher, dev Dispatcher, bus *events.Bus, cfg Config, logger *slog.Logger) *Bridge {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 10 * time.Second
	}
	return &Bridge{
		pub:    pub,
		dev:    dev,
		bus:    bus,
		prefix: cfg.TopicPrefix,
		ping:   cfg.PingInterval,
		logger: logger.With("component", "mqtt"),
	}
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(dev Dispatcher, bus *events.Bus, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := newBridge(nil, dev, bus, cfg, logger)

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("ok-to-wake-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(b.statusTopic(), "offline", 1, true).
		SetOnConnectHandler(func(c pahomqtt.Client) {
			b.logger.Info("MQTT connected", "broker", cfg.Broker)
			b.publish(b.statusTopic(), "online", true)
			c.Subscribe(b.setTopic(), 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
				b.handleSet(msg.Payload())
			})
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	b.client = client
	b.pub = client
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// paho keeps retrying in the background; the connect handler
		// finishes setup once the broker answers.
		b.logger.Warn("MQTT broker not reachable yet, retrying", "broker", cfg.Broker)
		return b, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

// Start follows color changes and begins the ping loop.
func (b *Bridge) Start() {
	b.unsub = b.bus.On(events.ColorChanged, b.handleColorChanged)

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.pingLoop(ctx)
	}()
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	if b.unsub != nil {
		b.unsub()
	}
	b.publish(b.statusTopic(), "offline", true)
	if b.client != nil {
		b.client.Disconnect(1000)
	}
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(b.ping)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.publish(b.statusTopic(), "ping", false)
		}
	}
}

// handleSet maps a color name payload onto SetColor. Anything else is
// logged and dropped.
func (b *Bridge) handleSet(payload []byte) {
	c, err := light.ParseColor(string(payload))
	if err != nil {
		b.logger.Warn("ignoring MQTT payload", "topic", b.setTopic(), "payload", string(payload))
		return
	}
	if _, err := b.dev.Dispatch(device.SetColor{Color: c}); err != nil {
		b.logger.Warn("MQTT command failed", "color", c, "err", err)
	}
}

// handleColorChanged publishes colors set by commands; schedule changes
// stay local.
func (b *Bridge) handleColorChanged(e events.Event) {
	cc, ok := e.Data.(events.ColorChange)
	if !ok || cc.Source != events.SourceCommand {
		return
	}
	b.publish(b.colorTopic(), cc.Color, true)
}

func (b *Bridge) publish(topic string, payload string, retained bool) {
	if b.pub == nil {
		return
	}
	token := b.pub.Publish(topic, 1, retained, []byte(payload))
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}
