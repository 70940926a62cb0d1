package broker

import (
	"bytes"
	"encoding/json"
)

// Message is the body shared by every transport of one notification.
// It is immutable: the constructor and Body both copy.
type Message struct {
	body []byte
}

func NewMessage(body []byte) Message {
	return Message{body: append([]byte(nil), body...)}
}

// NewJSONMessage encodes v without HTML escaping, so topics and other
// slash-containing values reach agents as written.
func NewJSONMessage(v any) (Message, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return Message{}, err
	}
	return Message{body: bytes.TrimRight(buf.Bytes(), "\n")}, nil
}

func (m Message) Body() []byte { return append([]byte(nil), m.body...) }

func (m Message) String() string { return string(m.body) }
