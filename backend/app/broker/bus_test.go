package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type call struct {
	kind Kind
	body string
	env  TransportEnvelope
}

type recordingMiddleware struct {
	kind  Kind
	err   error
	calls *[]call
}

func (m recordingMiddleware) Kind() Kind { return m.kind }

func (m recordingMiddleware) Handle(_ context.Context, msg Message, env TransportEnvelope) error {
	*m.calls = append(*m.calls, call{kind: m.kind, body: msg.String(), env: env})
	return m.err
}

func TestDispatchEmptyEnvelopeIsNoop(t *testing.T) {
	var calls []call
	bus := NewBus(zerolog.Nop(),
		recordingMiddleware{kind: KindMQTT, calls: &calls},
		recordingMiddleware{kind: KindFCM, calls: &calls},
	)

	require.NoError(t, bus.Dispatch(context.Background(), NewEnvelope(NewMessage([]byte(`{"wipe":"now"}`)))))
	require.NoError(t, bus.Dispatch(context.Background(), nil))
	require.Empty(t, calls)
}

func TestDispatchRoutesOnlyPresentKinds(t *testing.T) {
	var calls []call
	bus := NewBus(zerolog.Nop(),
		recordingMiddleware{kind: KindMQTT, calls: &calls},
		recordingMiddleware{kind: KindFCM, calls: &calls},
	)
	env := NewEnvelope(NewMessage([]byte(`{"query":"Ping"}`)), MqttEnvelope{Topic: "1/agent/SN/Command/Ping"})

	require.NoError(t, bus.Dispatch(context.Background(), env))
	require.Len(t, calls, 1)
	require.Equal(t, KindMQTT, calls[0].kind)
	require.Equal(t, `{"query":"Ping"}`, calls[0].body)
	require.Equal(t, MqttEnvelope{Topic: "1/agent/SN/Command/Ping"}, calls[0].env)
}

func TestDispatchIsolatesFailures(t *testing.T) {
	var calls []call
	boom := errors.New("broker unreachable")
	bus := NewBus(zerolog.Nop(),
		recordingMiddleware{kind: KindMQTT, err: boom, calls: &calls},
		recordingMiddleware{kind: KindFCM, calls: &calls},
	)
	env := NewEnvelope(NewMessage([]byte(`{"lock":"now"}`)),
		MqttEnvelope{Topic: "1/agent/SN/Command/Lock", Retain: true},
		FcmEnvelope{Topic: "1/agent/SN/Command/Lock", Scope: []PushScope{{Type: "fcm", Token: "t"}}},
	)

	err := bus.Dispatch(context.Background(), env)
	require.Error(t, err)
	require.ErrorIs(t, err, boom)
	require.Equal(t, []Kind{KindMQTT}, FailedKinds(err))

	require.Len(t, calls, 2)
	require.Equal(t, KindMQTT, calls[0].kind)
	require.Equal(t, KindFCM, calls[1].kind)
}

func TestDispatchReportsEveryFailedTransport(t *testing.T) {
	var calls []call
	bus := NewBus(zerolog.Nop(),
		recordingMiddleware{kind: KindMQTT, err: errors.New("a"), calls: &calls},
		recordingMiddleware{kind: KindFCM, err: errors.New("b"), calls: &calls},
	)
	env := NewEnvelope(NewMessage(nil), MqttEnvelope{Topic: "t"}, FcmEnvelope{Topic: "t"})

	err := bus.Dispatch(context.Background(), env)
	require.ElementsMatch(t, []Kind{KindMQTT, KindFCM}, FailedKinds(err))
}

func TestEnvelopeKeepsOneTransportPerKind(t *testing.T) {
	env := NewEnvelope(NewMessage([]byte("x")),
		MqttEnvelope{Topic: "first"},
		nil,
		MqttEnvelope{Topic: "second", Retain: true},
	)
	require.Equal(t, []Kind{KindMQTT}, env.Kinds())
	te, ok := env.Transport(KindMQTT)
	require.True(t, ok)
	require.Equal(t, MqttEnvelope{Topic: "second", Retain: true}, te)
	require.False(t, env.Has(KindFCM))
}

func TestMessageIsImmutable(t *testing.T) {
	raw := []byte("abc")
	msg := NewMessage(raw)
	raw[0] = 'z'
	require.Equal(t, "abc", msg.String())

	body := msg.Body()
	body[0] = 'y'
	require.Equal(t, "abc", msg.String())
}

func TestJSONMessageKeepsSlashes(t *testing.T) {
	msg, err := NewJSONMessage(map[string]any{"subscribe": []map[string]any{{"topic": "12/fleet/3"}}})
	require.NoError(t, err)
	require.Equal(t, `{"subscribe":[{"topic":"12/fleet/3"}]}`, msg.String())
}
