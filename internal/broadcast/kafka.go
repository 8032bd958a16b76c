package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// Kafka publica los eventos en un topico Kafka. Cada suscripcion usa su propio
// consumer sin grupo, asi todas las sesiones reciben todos los eventos.
type Kafka struct {
	client      sarama.Client
	producer    sarama.SyncProducer
	newConsumer func() (sarama.Consumer, error)
	logger      *zap.Logger
}

func kafkaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	cfg.ClientID = "chattersphere"

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 1
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

func NewKafka(brokers []string, logger *zap.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers missing")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := kafkaConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sarama config validate: %w", err)
	}
	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Kafka{
		client:   client,
		producer: producer,
		newConsumer: func() (sarama.Consumer, error) {
			return sarama.NewConsumerFromClient(client)
		},
		logger: logger,
	}, nil
}

func (k *Kafka) Publish(_ context.Context, topic string, payload []byte) error {
	_, _, err := k.producer.SendMessage(producerMessage(topic, payload))
	return err
}

// producerMessage particiona por clave de conversacion para que los eventos de
// un mismo par conserven el orden.
func producerMessage(topic string, payload []byte) *sarama.ProducerMessage {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(payload),
	}
	if ev, err := DecodeEvent(payload); err == nil && ev.ConversationKey != "" {
		msg.Key = sarama.StringEncoder(ev.ConversationKey)
	}
	return msg
}

// Subscribe consume todas las particiones de topic desde el offset mas nuevo.
func (k *Kafka) Subscribe(_ context.Context, topic string, handler Handler) (func(), error) {
	consumer, err := k.newConsumer()
	if err != nil {
		return nil, err
	}
	partitions, err := consumer.Partitions(topic)
	if err != nil {
		_ = consumer.Close()
		return nil, fmt.Errorf("kafka partitions for %s: %w", topic, err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	opened := make([]sarama.PartitionConsumer, 0, len(partitions))

	// El consumer creado desde un client compartido no cierra sus particiones.
	shutdown := func() {
		close(stop)
		wg.Wait()
		for _, pc := range opened {
			if cerr := pc.Close(); cerr != nil {
				k.logger.Warn("kafka partition close", zap.Error(cerr))
			}
		}
		_ = consumer.Close()
	}

	for _, p := range partitions {
		pc, err := consumer.ConsumePartition(topic, p, sarama.OffsetNewest)
		if err != nil {
			shutdown()
			return nil, fmt.Errorf("kafka consume partition %d: %w", p, err)
		}
		opened = append(opened, pc)
		wg.Add(1)
		go func(pc sarama.PartitionConsumer) {
			defer wg.Done()
			errs := pc.Errors()
			for {
				select {
				case <-stop:
					return
				case msg, ok := <-pc.Messages():
					if !ok {
						return
					}
					handler(append([]byte(nil), msg.Value...))
				case cerr, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					k.logger.Warn("kafka consume error", zap.Error(cerr.Err), zap.Int32("partition", cerr.Partition))
				}
			}
		}(pc)
	}

	var once sync.Once
	return func() { once.Do(shutdown) }, nil
}

// Ping refresca la metadata del cluster.
func (k *Kafka) Ping(context.Context) error {
	return k.client.RefreshMetadata()
}

func (k *Kafka) Close() error {
	if k == nil || k.producer == nil {
		return nil
	}
	perr := k.producer.Close()
	if k.client != nil && !k.client.Closed() {
		if cerr := k.client.Close(); cerr != nil && perr == nil {
			return cerr
		}
	}
	return perr
}
