package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"slackalert/internal/config"
	"slackalert/internal/permanent"
)

// NATSSubscriber consumes alerts via a JetStream queue consumer.
// Params: NATS connection, JetStream queue subscription, and alert sink.
// Returns: NATS intake lifecycle handle.
type NATSSubscriber struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	logger *slog.Logger
}

// NewNATSSubscriber creates the JetStream queue consumer for alert intake.
// Params: intake NATS config, sink, and optional logger.
// Returns: started subscriber or initialization error.
func NewNATSSubscriber(cfg config.NATSIngestConfig, sink AlertSink, logger *slog.Logger) (*NATSSubscriber, error) {
	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats intake: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init for intake: %w", err)
	}

	subscriber := &NATSSubscriber{
		nc:     nc,
		logger: logger,
	}
	ackWait := time.Duration(cfg.AckWaitSec) * time.Second
	nackDelay := time.Duration(cfg.NackDelayMS) * time.Millisecond
	subOpts := []nats.SubOpt{
		nats.BindStream(cfg.Stream),
		nats.Durable(cfg.ConsumerName),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(ackWait),
		nats.MaxDeliver(cfg.MaxDeliver),
		nats.MaxAckPending(cfg.MaxAckPending),
		nats.DeliverAll(),
	}
	sub, err := js.QueueSubscribe(cfg.Subject, cfg.DeliverGroup, func(message *nats.Msg) {
		subscriber.handleMessage(message, sink, nackDelay)
	}, subOpts...)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("queue subscribe %q/%q: %w", cfg.Subject, cfg.DeliverGroup, err)
	}
	subscriber.sub = sub
	return subscriber, nil
}

// handleMessage decodes and dispatches one queued alert payload.
// Params: JetStream message, sink, and redelivery delay.
// Returns: nothing; undecodable payloads and permanent dispatch errors are
// ACKed (redelivery cannot help), transient failures are NAKed with delay.
func (s *NATSSubscriber) handleMessage(message *nats.Msg, sink AlertSink, nackDelay time.Duration) {
	alerts, decodeErr := decodeAlertPayload(message.Data)
	if decodeErr != nil {
		if s.logger != nil {
			s.logger.Warn("nats intake decode failed", "subject", message.Subject, "error", decodeErr.Error())
		}
		s.ackMessage(message, "decode")
		return
	}
	for _, alert := range alerts {
		if err := sink.Push(context.Background(), alert); err != nil {
			if permanent.Is(err) {
				if s.logger != nil {
					s.logger.Error("nats intake dispatch failed permanently",
						"subject", message.Subject, "service", alert.Service, "error", err.Error())
				}
				s.ackMessage(message, "permanent")
				return
			}
			if s.logger != nil {
				s.logger.Error("nats intake dispatch failed",
					"subject", message.Subject, "service", alert.Service, "error", err.Error())
			}
			s.nackMessage(message, nackDelay)
			return
		}
	}
	s.ackMessage(message, "processed")
}

// ackMessage acknowledges a processed or poisoned message.
// Params: JetStream message and short reason.
// Returns: none; ack failures are logged.
func (s *NATSSubscriber) ackMessage(message *nats.Msg, reason string) {
	if message == nil {
		return
	}
	if err := message.Ack(); err != nil && s.logger != nil {
		s.logger.Warn("nats intake ack failed", "subject", message.Subject, "reason", reason, "error", err.Error())
	}
}

// nackMessage asks JetStream to redeliver a message.
// Params: JetStream message and optional delay.
// Returns: none; nack failures are logged.
func (s *NATSSubscriber) nackMessage(message *nats.Msg, delay time.Duration) {
	if message == nil {
		return
	}
	var err error
	if delay > 0 {
		err = message.NakWithDelay(delay)
	} else {
		err = message.Nak()
	}
	if err != nil && s.logger != nil {
		s.logger.Warn("nats intake nack failed", "subject", message.Subject, "error", err.Error())
	}
}

// Close stops the NATS subscription and closes the connection.
// Params: none.
// Returns: close error from subscription drain.
func (s *NATSSubscriber) Close() error {
	if s.sub != nil {
		if err := s.sub.Drain(); err != nil {
			s.nc.Close()
			return err
		}
	}
	s.nc.Close()
	return nil
}
