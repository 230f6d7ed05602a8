package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/lampd/internal/logic"
)

// DefaultBufferSize is the number of messages kept while disconnected.
const DefaultBufferSize = 256

// Config configures a RealPublisher.
type Config struct {
	Broker     string
	ClientID   string
	BufferSize int
	Logger     *zap.Logger
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topic  string
	logger *zap.Logger

	mu        sync.Mutex
	buffer    *ringBuffer
	connected bool
	everUp    bool
}

// NewRealPublisher creates a publisher for the given broker. The initial
// connection is retried in the background; a timeout is not an error.
func NewRealPublisher(cfg Config) (*RealPublisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker address is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}

	p := &RealPublisher{
		topic:  Topic,
		logger: logger,
		buffer: newRingBuffer(size, logger),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		logger.Warn("mqtt connect timed out, retrying in background", zap.String("broker", cfg.Broker))
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.everUp
	p.connected = true
	p.everUp = true
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	p.logger.Info("mqtt connected", zap.Bool("reconnect", reconnect), zap.Int("replay", len(pending)))

	for _, m := range pending {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventReconnected, Retained: true})
		c.Publish(TopicSystem, 1, true, payload)
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.logger.Warn("mqtt connection lost", zap.Error(err))
}

// Publish sends a lamp event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1 so transitions survive a broker restart.
	return p.send(bufferedMsg{topic: p.topic, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(m bufferedMsg) error {
	p.mu.Lock()
	if !p.connected {
		p.buffer.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		p.requeue(m)
		return fmt.Errorf("publish to %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		p.requeue(m)
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

func (p *RealPublisher) requeue(m bufferedMsg) {
	p.mu.Lock()
	p.buffer.push(m)
	p.mu.Unlock()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
