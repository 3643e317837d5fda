// Package notify fans verified check-ins out to other systems.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Publisher announces attendance events.
type Publisher interface {
	Publish(ctx context.Context, event database.AttendanceEvent) error
	Close()
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, database.AttendanceEvent) error { return nil }
func (Nop) Close()                                                  {}

// eventMessage is the JSON payload published for each check-in.
type eventMessage struct {
	UID       int64     `json:"uid"`
	Name      string    `json:"name"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTPublisher publishes events as JSON to a single topic.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	log    *zap.Logger
}

// NewMQTT connects to the configured broker.
func NewMQTT(cfg config.MQTTConfig, log *zap.Logger) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "attendance-kiosk-" + uuid.NewString()
	}

	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetConnectTimeout(30 * time.Second)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		log.Info("connected to MQTT", zap.String("broker", cfg.Broker), zap.String("client_id", clientID))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("MQTT connection lost", zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return newMQTTPublisher(client, cfg.Topic, log), nil
}

func newMQTTPublisher(client mqtt.Client, topic string, log *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, log: log}
}

// Publish sends the event with QoS 1 and waits for the broker acknowledgement.
func (p *MQTTPublisher) Publish(ctx context.Context, event database.AttendanceEvent) error {
	payload, err := json.Marshal(eventMessage{
		UID:       event.UID,
		Name:      event.Name,
		Date:      event.Date,
		Time:      event.Time,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	timeout := publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	token := p.client.Publish(p.topic, 1, false, payload)
	if !token.WaitTimeout(timeout) {
		return errors.New("timed out publishing event")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
