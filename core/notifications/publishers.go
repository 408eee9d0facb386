package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apae-gestao/apae/core/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

// header keys attached to every published message
const (
	HeaderResource  = "resource"
	HeaderOperation = "operation"
	HeaderRequestID = "request-id"
)

// Log publishes events to the log
type Log struct{}

// Name implements Publisher
func (Log) Name() string { return "log" }

// Publish implements Publisher
func (Log) Publish(ctx context.Context, event Event) error {
	logger.FromContext(ctx).WithField("resource_id", event.ResourceID.String()).
		Infof("notification %s %s (%d bytes)", event.Resource, event.Operation, len(event.Payload))
	return nil
}

// Close implements Publisher
func (Log) Close() error { return nil }

// KafkaConfiguration configures the Kafka publisher
type KafkaConfiguration struct {
	Brokers []string
	Topic   string
}

// Kafka publishes events to a Kafka topic, keyed by resource id so that all
// events of one resource land in the same partition
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka returns a Kafka publisher
func NewKafka(config KafkaConfiguration) (*Kafka, error) {
	if len(config.Brokers) == 0 || config.Topic == "" {
		return nil, fmt.Errorf("kafka needs brokers and a topic")
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(config.Brokers...),
			Topic:                  config.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			WriteTimeout:           10 * time.Second,
		},
	}, nil
}

// Name implements Publisher
func (k *Kafka) Name() string { return "kafka:" + k.writer.Topic }

// Publish implements Publisher
func (k *Kafka) Publish(ctx context.Context, event Event) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return k.writer.WriteMessages(ctx, kafkaMessage(event))
}

// Close implements Publisher
func (k *Kafka) Close() error { return k.writer.Close() }

func kafkaMessage(event Event) kafka.Message {
	headers := []kafka.Header{
		{Key: HeaderResource, Value: []byte(event.Resource)},
		{Key: HeaderOperation, Value: []byte(event.Operation)},
	}
	if event.RequestID != "" {
		headers = append(headers, kafka.Header{Key: HeaderRequestID, Value: []byte(event.RequestID)})
	}
	return kafka.Message{
		Key:     []byte(event.ResourceID.String()),
		Value:   event.Payload,
		Headers: headers,
		Time:    event.CreatedAt,
	}
}

// SQSAPI is the part of the SQS client the publisher needs
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQS publishes events to an SQS queue. The message body is the JSON encoded
// event, resource and operation are also available as message attributes.
type SQS struct {
	client   SQSAPI
	queueURL string
}

// NewSQS returns an SQS publisher
func NewSQS(client SQSAPI, queueURL string) *SQS {
	return &SQS{client: client, queueURL: queueURL}
}

// Name implements Publisher
func (s *SQS) Name() string {
	return "sqs:" + s.queueURL[strings.LastIndex(s.queueURL, "/")+1:]
}

// Publish implements Publisher
func (s *SQS) Publish(ctx context.Context, event Event) error {
	input, err := s.sqsInput(event)
	if err != nil {
		return err
	}
	_, err = s.client.SendMessage(ctx, input)
	return err
}

// Close implements Publisher
func (s *SQS) Close() error { return nil }

func (s *SQS) sqsInput(event Event) (*sqs.SendMessageInput, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	attributes := map[string]types.MessageAttributeValue{
		HeaderResource:  {DataType: aws.String("String"), StringValue: aws.String(event.Resource)},
		HeaderOperation: {DataType: aws.String("String"), StringValue: aws.String(string(event.Operation))},
	}
	if event.RequestID != "" {
		attributes[HeaderRequestID] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(event.RequestID)}
	}
	return &sqs.SendMessageInput{
		QueueUrl:          aws.String(s.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attributes,
	}, nil
}
