package broker

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds connection settings for the NATS transport.
type NATSConfig struct {
	URL           string
	Token         string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the settings used when nothing is configured.
func DefaultNATSConfig(url, token string) NATSConfig {
	return NATSConfig{
		URL:           url,
		Token:         token,
		Name:          "emojinious-client",
		MaxReconnects: 10,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSBroker is the primary transport: one NATS connection per session.
type NATSBroker struct {
	nc *nats.Conn
}

// DialNATS establishes the broker connection. Auth rejection and transport
// failure both come back as *ConnectionError.
func DialNATS(cfg NATSConfig) (*NATSBroker, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("broker disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("broker reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("broker error")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, &ConnectionError{URL: cfg.URL, Err: err}
	}

	log.Info().Str("url", cfg.URL).Msg("broker connected")
	return &NATSBroker{nc: nc}, nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

func (b *NATSBroker) Subscribe(topic string, h Handler) (Subscription, error) {
	sub, err := b.nc.Subscribe(subjectForm(topic), func(msg *nats.Msg) {
		h(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("topic", topic).Msg("subscribed")
	return &natsSubscription{sub: sub}, nil
}

func (b *NATSBroker) Publish(topic string, body []byte) error {
	return b.nc.Publish(subjectForm(topic), body)
}

func (b *NATSBroker) Close() error {
	if b.nc != nil && !b.nc.IsClosed() {
		b.nc.Close()
	}
	return nil
}
