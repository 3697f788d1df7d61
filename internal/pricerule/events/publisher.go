package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/smallbiznis/pricerules/internal/config"
	"github.com/smallbiznis/pricerules/internal/pricerule/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer MessageWriter
	log    *zap.Logger
}

type noopPublisher struct {
	log *zap.Logger
}

// Provide returns a Kafka publisher when brokers are configured and a
// publisher that only logs otherwise.
func Provide(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) domain.EventPublisher {
	log = log.Named("price_rule.events")
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka disabled; rule events are logged only")
		return &noopPublisher{log: log}
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Kafka.Brokers...),
		Topic:                  cfg.Kafka.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return writer.Close()
		},
	})

	log.Info("kafka publisher configured",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
	)
	return NewKafkaPublisher(writer, log)
}

func NewKafkaPublisher(writer MessageWriter, log *zap.Logger) domain.EventPublisher {
	return &kafkaPublisher{writer: writer, log: log}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event domain.RuleEvent) error {
	msg, err := buildMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn("publish rule event failed",
			zap.String("type", string(event.Type)),
			zap.String("rule_id", event.RuleID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (p *noopPublisher) Publish(ctx context.Context, event domain.RuleEvent) error {
	p.log.Debug("rule event",
		zap.String("type", string(event.Type)),
		zap.String("org_id", event.OrgID),
		zap.String("rule_id", event.RuleID),
	)
	return nil
}

// buildMessage keys by organization so one org's events stay ordered on a
// single partition.
func buildMessage(event domain.RuleEvent) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.OrgID),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}
