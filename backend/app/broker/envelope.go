package broker

import "sort"

type Kind string

const (
	KindMQTT Kind = "mqtt"
	KindFCM  Kind = "fcm"
)

// TransportEnvelope carries the delivery instructions of one transport.
type TransportEnvelope interface {
	Kind() Kind
}

type MqttEnvelope struct {
	Topic  string
	Retain bool
}

func (MqttEnvelope) Kind() Kind { return KindMQTT }

// PushScope addresses one device on a push channel.
type PushScope struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type FcmEnvelope struct {
	Topic string
	Scope []PushScope
}

func (FcmEnvelope) Kind() Kind { return KindFCM }

// Envelope pairs a message with at most one TransportEnvelope per kind.
// A kind with no entry is not sent on.
type Envelope struct {
	message    Message
	transports map[Kind]TransportEnvelope
}

// NewEnvelope builds an envelope; nil transports are skipped and a later
// transport of the same kind replaces an earlier one.
func NewEnvelope(msg Message, transports ...TransportEnvelope) *Envelope {
	e := &Envelope{message: msg, transports: make(map[Kind]TransportEnvelope, len(transports))}
	for _, t := range transports {
		if t == nil {
			continue
		}
		e.transports[t.Kind()] = t
	}
	return e
}

func (e *Envelope) Message() Message { return e.message }

func (e *Envelope) Transport(k Kind) (TransportEnvelope, bool) {
	t, ok := e.transports[k]
	return t, ok
}

func (e *Envelope) Has(k Kind) bool {
	_, ok := e.transports[k]
	return ok
}

func (e *Envelope) Kinds() []Kind {
	out := make([]Kind, 0, len(e.transports))
	for k := range e.transports {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (e *Envelope) Empty() bool { return len(e.transports) == 0 }
