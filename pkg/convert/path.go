package convert

import (
	"github.com/epics-kafka/forwarder/pkg/schema"
)

// TopicProducer is the subset of broker.TopicHandle a ConversionPath
// needs. *broker.TopicHandle satisfies it; tests supply a lighter fake
// without standing up a broker connection.
type TopicProducer interface {
	Produce(payload []byte) error
	TopicName() string
}

// ConversionPath pairs one Converter with one Topic Handle: a single
// atomic output step of a Stream. A Stream owns an ordered list of these
// and submits one task per path for each dequeued update.
type ConversionPath struct {
	Converter schema.Converter
	Topic     TopicProducer

	// SchemaName and ConverterIdentity are kept alongside Converter so the
	// Stream can release the shared converter reference (if any) when the
	// path is torn down, without the registry needing to inspect Converter
	// itself.
	SchemaName        string
	ConverterIdentity string
}

// NewConversionPath builds a ConversionPath from an already-acquired
// converter and topic handle.
func NewConversionPath(schemaName, identity string, converter schema.Converter, topic TopicProducer) *ConversionPath {
	return &ConversionPath{
		Converter:         converter,
		Topic:             topic,
		SchemaName:        schemaName,
		ConverterIdentity: identity,
	}
}
