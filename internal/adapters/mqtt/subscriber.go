package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"energia-backend/internal/config"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

const (
	qosAtLeastOnce = 1
	connectTimeout = 10 * time.Second
	handleTimeout  = 5 * time.Second
	quiesceMillis  = 250
)

// Handler consumes one broker message
type Handler interface {
	HandleMessage(ctx context.Context, topic string, payload []byte) error
}

// Subscriber feeds messages from one topic filter into a Handler.
// The subscription is renewed on every (re)connect.
type Subscriber struct {
	cfg     config.MQTTConfig
	handler Handler
	client  paho.Client
}

// NewSubscriber creates a subscriber; call Start to connect
func NewSubscriber(cfg config.MQTTConfig, handler Handler) *Subscriber {
	s := &Subscriber{cfg: cfg, handler: handler}

	opts := paho.NewClientOptions().
		AddBroker(BrokerURL(cfg)).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("⚠️ MQTT connection lost")
		})

	s.client = paho.NewClient(opts)
	return s
}

// BrokerURL builds tcp://host:port unless the broker already carries a scheme
func BrokerURL(cfg config.MQTTConfig) string {
	if strings.Contains(cfg.Broker, "://") {
		return cfg.Broker
	}
	return fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)
}

// Start connects to the broker. With connect retry enabled the first
// attempt may still be pending when the timeout elapses; that is not an error.
func (s *Subscriber) Start() error {
	token := s.client.Connect()
	if token.WaitTimeout(connectTimeout) && token.Error() != nil {
		return fmt.Errorf("mqtt connect %s: %w", BrokerURL(s.cfg), token.Error())
	}
	log.Info().Str("broker", BrokerURL(s.cfg)).Str("topic", s.cfg.Topic).Msg("📡 MQTT subscriber started")
	return nil
}

// Stop disconnects from the broker
func (s *Subscriber) Stop() {
	s.client.Disconnect(quiesceMillis)
	log.Info().Msg("📡 MQTT subscriber stopped")
}

func (s *Subscriber) onConnect(c paho.Client) {
	token := c.Subscribe(s.cfg.Topic, qosAtLeastOnce, s.onMessage)
	if !token.WaitTimeout(connectTimeout) {
		log.Error().Str("topic", s.cfg.Topic).Msg("❌ MQTT subscribe timed out")
		return
	}
	if err := token.Error(); err != nil {
		log.Error().Err(err).Str("topic", s.cfg.Topic).Msg("❌ MQTT subscribe failed")
		return
	}
	log.Info().Str("topic", s.cfg.Topic).Msg("✅ MQTT subscribed")
}

// onMessage hands the payload to the handler. Handler errors are already
// logged and counted there; a bad payload must not stop the stream.
func (s *Subscriber) onMessage(_ paho.Client, msg paho.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if err := s.handler.HandleMessage(ctx, msg.Topic(), msg.Payload()); err != nil && errors.Is(err, context.DeadlineExceeded) {
		log.Warn().Str("topic", msg.Topic()).Msg("⚠️ Sensor message handling timed out")
	}
}
