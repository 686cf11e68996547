package mqtt

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/climate-bridge/internal/accessory"
	"github.com/sweeney/climate-bridge/internal/config"
)

// RealTransport is the accessory transport backed by an MQTT broker.
//
// Notify never waits on the network: updates are handed to paho while the
// connection is open and kept in a bounded buffer otherwise. Poll replays
// the buffer once the connection is back and, after every (re)connect,
// republishes the current value of each characteristic.
type RealTransport struct {
	client     paho.Client
	topics     Topics
	qos        byte
	store      *accessory.Store
	onIdentify func(accessoryID int)
	log        *zap.SugaredLogger

	observers *presence
	connects  atomic.Uint64 // incremented by the OnConnect handler
	seen      uint64        // last connects value handled by Poll

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealTransport connects to the broker in cfg. If the broker is not
// reachable yet the transport is still returned and paho keeps retrying in
// the background; updates are buffered meanwhile.
func NewRealTransport(cfg config.MQTTConfig, store *accessory.Store, onIdentify func(accessoryID int), log *zap.SugaredLogger) (*RealTransport, error) {
	t := newRealTransport(cfg, store, onIdentify, log)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "LWT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetWill(t.topics.System(), string(will), 1, true).
		SetOnConnectHandler(t.onConnect).
		SetConnectionLostHandler(t.onConnectionLost)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	t.client = paho.NewClient(opts)
	token := t.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Warnw("mqtt broker not reachable yet, retrying in background", "broker", cfg.Broker)
		return t, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return t, nil
}

func newRealTransport(cfg config.MQTTConfig, store *accessory.Store, onIdentify func(int), log *zap.SugaredLogger) *RealTransport {
	size := cfg.BufferSize
	if size < 1 {
		size = 1
	}
	return &RealTransport{
		topics:     Topics{Prefix: cfg.TopicPrefix},
		qos:        cfg.QoS,
		store:      store,
		onIdentify: onIdentify,
		log:        log,
		observers:  newPresence(),
		buf:        newRingBuffer(size),
	}
}

// onConnect runs on a paho goroutine after every successful connect.
func (t *RealTransport) onConnect(c paho.Client) {
	t.log.Infow("mqtt connected", "prefix", t.topics.Prefix)

	if tok := c.Subscribe(t.topics.Observers(), 1, t.handlePresence); tok.WaitTimeout(5*time.Second) && tok.Error() != nil {
		t.log.Errorw("subscribe failed", "topic", t.topics.Observers(), "error", tok.Error())
	}
	if tok := c.Subscribe(t.topics.Identify(), 1, t.handleIdentify); tok.WaitTimeout(5*time.Second) && tok.Error() != nil {
		t.log.Errorw("subscribe failed", "topic", t.topics.Identify(), "error", tok.Error())
	}

	table, err := FormatAccessories(t.store.Accessories())
	if err != nil {
		t.log.Errorw("format accessory table", "error", err)
	} else {
		c.Publish(t.topics.Accessories(), 1, true, table)
	}

	t.connects.Add(1)
}

func (t *RealTransport) onConnectionLost(_ paho.Client, err error) {
	t.log.Warnw("mqtt connection lost", "error", err)
	t.observers.reset()
}

func (t *RealTransport) handlePresence(_ paho.Client, msg paho.Message) {
	id, ok := t.topics.ObserverID(msg.Topic())
	if !ok {
		return
	}
	t.observers.update(id, msg.Payload())
	t.log.Debugw("observer presence", "controller", id, "payload", string(msg.Payload()), "online", t.observers.count())
}

func (t *RealTransport) handleIdentify(_ paho.Client, msg paho.Message) {
	id, ok := t.topics.IdentifyAccessory(msg.Topic())
	if !ok {
		return
	}
	if t.onIdentify != nil {
		t.onIdentify(id)
	}
}

// Notify publishes the characteristic value carried by ev.
func (t *RealTransport) Notify(ev accessory.Event) {
	payload, err := FormatValue(ev.Value)
	if err != nil {
		t.log.Errorw("format characteristic value", "characteristic", ev.Characteristic, "error", err)
		return
	}
	msg := bufferedMsg{
		topic:    t.topics.Characteristic(ev.AccessoryID, ev.Characteristic),
		payload:  payload,
		qos:      t.qos,
		retained: true,
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Anything still buffered goes out first so observers keep the order.
	if t.client.IsConnectionOpen() && t.buf.len() == 0 {
		t.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		return
	}
	if t.buf.push(msg) {
		t.log.Warnw("mqtt buffer full, dropping oldest", "capacity", t.buf.size())
	}
}

// Poll replays buffered updates and, after a reconnect, the current value
// of every characteristic.
func (t *RealTransport) Poll() {
	if !t.client.IsConnectionOpen() {
		return
	}

	t.mu.Lock()
	pending := t.buf.drainAll()
	for _, m := range pending {
		t.client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	t.mu.Unlock()
	if len(pending) > 0 {
		t.log.Infow("replayed buffered updates", "count", len(pending))
	}

	n := t.connects.Load()
	if n == t.seen {
		return
	}
	t.seen = n
	for _, ev := range t.store.Snapshot() {
		payload, err := FormatValue(ev.Value)
		if err != nil {
			continue
		}
		t.client.Publish(t.topics.Characteristic(ev.AccessoryID, ev.Characteristic), t.qos, true, payload)
	}
}

// ConnectedObservers returns the number of controllers announced online.
func (t *RealTransport) ConnectedObservers() int {
	return t.observers.count()
}

// Protocol returns "MQTT".
func (t *RealTransport) Protocol() string {
	return Protocol
}

// IsConnected reports whether the broker connection is open.
func (t *RealTransport) IsConnected() bool {
	return t.client.IsConnectionOpen()
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (t *RealTransport) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	token := t.client.Publish(t.topics.System(), 1, event.Retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (t *RealTransport) Close() error {
	t.client.Disconnect(1000) // 1 second timeout
	return nil
}
