package syncbus

import (
	"context"
	"errors"

	sarama "github.com/IBM/sarama"
)

// KafkaBus implements Bus on partition 0 of a Kafka topic. Subscribers start
// at the newest offset.
type KafkaBus struct {
	producer sarama.SyncProducer
	consumer sarama.Consumer
	topic    string
	counters
}

// NewKafkaBus returns a KafkaBus over an existing producer and consumer.
func NewKafkaBus(producer sarama.SyncProducer, consumer sarama.Consumer, topic string) *KafkaBus {
	return &KafkaBus{producer: producer, consumer: consumer, topic: topic}
}

// DialKafka connects to brokers and returns a KafkaBus on topic.
func DialKafka(brokers []string, cfg *sarama.Config, topic string) (*KafkaBus, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.Return.Successes = true
	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = producer.Close()
		_ = client.Close()
		return nil, err
	}
	return NewKafkaBus(producer, consumer, topic), nil
}

// Publish implements Bus.Publish.
func (b *KafkaBus) Publish(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{Topic: b.topic, Value: sarama.StringEncoder(key)}
	if _, _, err := b.producer.SendMessage(msg); err != nil {
		return err
	}
	b.published.Add(1)
	return nil
}

// Subscribe implements Bus.Subscribe.
func (b *KafkaBus) Subscribe(ctx context.Context) (<-chan string, error) {
	pc, err := b.consumer.ConsumePartition(b.topic, 0, sarama.OffsetNewest)
	if err != nil {
		return nil, err
	}
	out := make(chan string, BufferSize)
	go func() {
		defer close(out)
		defer pc.Close()
		msgs := pc.Messages()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				b.deliver(out, string(msg.Value))
			}
		}
	}()
	return out, nil
}

// Metrics returns the bus counters.
func (b *KafkaBus) Metrics() Metrics {
	return b.snapshot()
}

// Close releases the producer and the consumer.
func (b *KafkaBus) Close() error {
	return errors.Join(b.producer.Close(), b.consumer.Close())
}
