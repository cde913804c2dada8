// internal/sink/mqtt/writer.go
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Pinkcliff/codeTest02/internal/sensor"
)

var ErrConnectTimeout = errors.New("mqtt: connect timed out")

type Config struct {
	Broker      string // e.g. tcp://127.0.0.1:1883
	ClientID    string // generated when empty
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// Publisher is the part of paho.Client the writer needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// Writer publishes each reading as JSON to <prefix>/<type>/<sensor_id>.
type Writer struct {
	pub    Publisher
	prefix string
	qos    byte
}

// Dial connects to the broker. The client reconnects on its own afterwards.
func Dial(cfg Config, log *logrus.Entry) (*Writer, error) {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	id := cfg.ClientID
	if id == "" {
		id = "acquire-" + uuid.NewString()
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(id).
		SetKeepAlive(30 * time.Second).
		SetConnectTimeout(5 * time.Second).
		SetPingTimeout(3 * time.Second).
		SetAutoReconnect(true).
		SetOrderMatters(false)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(func(paho.Client) {
		log.WithField("broker", cfg.Broker).Info("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.WithField("broker", cfg.Broker).WithError(err).Warn("mqtt connection lost")
	})

	client := paho.NewClient(opts)
	t := client.Connect()
	if !t.WaitTimeout(10 * time.Second) {
		return nil, ErrConnectTimeout
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}

	return New(client, cfg.TopicPrefix, cfg.QoS), nil
}

// New wraps a connected publisher.
func New(pub Publisher, prefix string, qos byte) *Writer {
	if prefix == "" {
		prefix = "sensors"
	}
	return &Writer{pub: pub, prefix: prefix, qos: qos}
}

func (w *Writer) Name() string { return "mqtt" }

// Topic returns the topic a reading is published to.
func (w *Writer) Topic(r sensor.Reading) string {
	return fmt.Sprintf("%s/%s/%s", w.prefix, r.Type, r.SensorID)
}

func (w *Writer) Write(ctx context.Context, r sensor.Reading) error {
	payload, err := json.Marshal(r.Map())
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}

	t := w.pub.Publish(w.Topic(r), w.qos, false, payload)
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) Close() error {
	if w.pub.IsConnectionOpen() {
		w.pub.Disconnect(250)
	}
	return nil
}
