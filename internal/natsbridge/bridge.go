// Package natsbridge mirrors envelope messages onto NATS subjects so
// dashboards and recorders outside the process can follow the loop.
package natsbridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/banshee-data/cognitive.radar/internal/codec"
	"github.com/banshee-data/cognitive.radar/internal/messages"
	"github.com/banshee-data/cognitive.radar/internal/monitoring"
)

const (
	// HeaderContentType names the encoding of a message body.
	HeaderContentType = "Content-Type"
	// HeaderKind carries the envelope kind so consumers can filter
	// without decoding.
	HeaderKind = "Radar-Kind"

	ContentTypeJSON  = "application/json"
	ContentTypeProto = "application/x-protobuf"

	subjectPrefix = "radar"
)

// Encoding selects the body format.
type Encoding string

const (
	EncodingJSON  Encoding = "json"
	EncodingProto Encoding = "proto"
)

// Publisher is the subset of *nats.Conn the bridge needs.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// IntelligenceSubject is the subject for a sensor's IntelligencePackets.
func IntelligenceSubject(sensorID string) string {
	return fmt.Sprintf("%s.intelligence.%s", subjectPrefix, sensorID)
}

// FeedbackSubject is the subject for an effector's FeedbackPackets.
func FeedbackSubject(effectorID string) string {
	return fmt.Sprintf("%s.feedback.%s", subjectPrefix, effectorID)
}

// Connect dials url with reconnect settings suited to a long-running
// publisher.
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				monitoring.Logf("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			monitoring.Logf("nats reconnected to %s", nc.ConnectedUrl())
		}),
	)
}

// Bridge publishes envelopes through a Publisher.
type Bridge struct {
	pub      Publisher
	encoding Encoding
}

// New returns a Bridge writing enc-encoded bodies. An empty enc means JSON.
func New(pub Publisher, enc Encoding) (*Bridge, error) {
	if pub == nil {
		return nil, errors.New("natsbridge: nil publisher")
	}
	switch enc {
	case "":
		enc = EncodingJSON
	case EncodingJSON, EncodingProto:
	default:
		return nil, fmt.Errorf("natsbridge: unknown encoding %q", enc)
	}
	return &Bridge{pub: pub, encoding: enc}, nil
}

// PublishIntelligence sends p on IntelligenceSubject(p.SensorID).
func (b *Bridge) PublishIntelligence(p messages.IntelligencePacket) error {
	return b.publish(IntelligenceSubject(p.SensorID), p)
}

// PublishFeedback sends p on FeedbackSubject(p.EffectorID).
func (b *Bridge) PublishFeedback(p messages.FeedbackPacket) error {
	return b.publish(FeedbackSubject(p.EffectorID), p)
}

func (b *Bridge) publish(subject string, msg codec.Message) error {
	var (
		data []byte
		ct   string
		err  error
	)
	switch b.encoding {
	case EncodingProto:
		data, err = codec.EncodeProto(msg)
		ct = ContentTypeProto
	default:
		data, err = codec.EncodeJSON(msg)
		ct = ContentTypeJSON
	}
	if err != nil {
		return err
	}
	m := nats.NewMsg(subject)
	m.Data = data
	m.Header.Set(HeaderContentType, ct)
	m.Header.Set(HeaderKind, string(msg.Kind()))
	if err := b.pub.PublishMsg(m); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Decode parses a message published by a Bridge, choosing the codec from
// its Content-Type header.
func Decode(m *nats.Msg) (codec.Message, error) {
	if m == nil {
		return nil, errors.New("natsbridge: nil message")
	}
	switch ct := m.Header.Get(HeaderContentType); ct {
	case ContentTypeProto:
		return codec.DecodeProto(m.Data)
	case ContentTypeJSON, "":
		return codec.DecodeJSON(m.Data)
	default:
		return nil, fmt.Errorf("natsbridge: unsupported content type %q", ct)
	}
}
