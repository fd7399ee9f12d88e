package natsbridge

import (
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cognitive.radar/internal/messages"
)

type fakePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakePublisher) PublishMsg(m *nats.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func packet(t *testing.T) messages.IntelligencePacket {
	t.Helper()
	p, err := messages.NewIntelligencePacket(messages.IntelligencePacket{
		FrameID:    12,
		SensorID:   "radar-7",
		Timestamp:  time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC),
		Situation:  messages.SituationAssessment{FrameID: 12, SceneType: messages.SceneSearch},
		Adaptation: messages.NeutralAdaptation(),
	})
	require.NoError(t, err)
	return p
}

func TestSubjects(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "radar.intelligence.radar-7", IntelligenceSubject("radar-7"))
	assert.Equal(t, "radar.feedback.ew-2", FeedbackSubject("ew-2"))
}

func TestBridge_PublishAndDecode(t *testing.T) {
	t.Parallel()
	for _, enc := range []Encoding{"", EncodingJSON, EncodingProto} {
		enc := enc
		t.Run(string(enc), func(t *testing.T) {
			t.Parallel()
			pub := &fakePublisher{}
			b, err := New(pub, enc)
			require.NoError(t, err)

			want := packet(t)
			require.NoError(t, b.PublishIntelligence(want))
			require.Len(t, pub.msgs, 1)
			m := pub.msgs[0]
			assert.Equal(t, "radar.intelligence.radar-7", m.Subject)
			assert.Equal(t, string(messages.KindIntelligence), m.Header.Get(HeaderKind))
			if enc == EncodingProto {
				assert.Equal(t, ContentTypeProto, m.Header.Get(HeaderContentType))
			} else {
				assert.Equal(t, ContentTypeJSON, m.Header.Get(HeaderContentType))
			}

			got, err := Decode(m)
			require.NoError(t, err)
			p, ok := got.(messages.IntelligencePacket)
			require.True(t, ok)
			assert.Equal(t, want.FrameID, p.FrameID)
			assert.True(t, want.Timestamp.Equal(p.Timestamp))
		})
	}
}

func TestBridge_Feedback(t *testing.T) {
	t.Parallel()
	pub := &fakePublisher{}
	b, err := New(pub, EncodingJSON)
	require.NoError(t, err)
	fb, err := messages.NewFeedbackPacket(messages.FeedbackPacket{
		EffectorID: "ew-2",
		FrameID:    12,
		Timestamp:  time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, b.PublishFeedback(fb))
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "radar.feedback.ew-2", pub.msgs[0].Subject)
}

func TestBridge_Errors(t *testing.T) {
	t.Parallel()
	_, err := New(nil, EncodingJSON)
	assert.Error(t, err)
	_, err = New(&fakePublisher{}, "xml")
	assert.Error(t, err)

	boom := errors.New("connection closed")
	b, err := New(&fakePublisher{err: boom}, EncodingJSON)
	require.NoError(t, err)
	assert.ErrorIs(t, b.PublishIntelligence(packet(t)), boom)

	bad := packet(t)
	bad.SensorHealth = 2
	pub := &fakePublisher{}
	b, err = New(pub, EncodingJSON)
	require.NoError(t, err)
	assert.ErrorIs(t, b.PublishIntelligence(bad), messages.ErrValidation)
	assert.Empty(t, pub.msgs)

	m := nats.NewMsg("radar.intelligence.x")
	m.Header.Set(HeaderContentType, "text/plain")
	_, err = Decode(m)
	assert.Error(t, err)
}
