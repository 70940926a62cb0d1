package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Middleware delivers a message through one transport.
type Middleware interface {
	Kind() Kind
	Handle(ctx context.Context, msg Message, env TransportEnvelope) error
}

// TransportError is the failure of a single transport during a dispatch.
type TransportError struct {
	Kind Kind
	Err  error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s transport: %v", e.Kind, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Bus runs an ordered middleware chain against envelopes.
type Bus struct {
	middlewares []Middleware
	log         zerolog.Logger
}

func NewBus(log zerolog.Logger, middlewares ...Middleware) *Bus {
	return &Bus{middlewares: middlewares, log: log}
}

// Dispatch hands the envelope to every middleware whose kind the envelope
// carries, in chain order. A failing middleware does not stop the next one;
// the returned error joins one *TransportError per failed transport.
func (b *Bus) Dispatch(ctx context.Context, env *Envelope) error {
	if env == nil || env.Empty() {
		return nil
	}
	var errs []error
	for _, mw := range b.middlewares {
		te, ok := env.Transport(mw.Kind())
		if !ok {
			continue
		}
		if err := mw.Handle(ctx, env.message, te); err != nil {
			b.log.Warn().Str("transport", string(mw.Kind())).Err(err).Msg("dispatch failed")
			errs = append(errs, &TransportError{Kind: mw.Kind(), Err: err})
		}
	}
	return errors.Join(errs...)
}

// FailedKinds lists the transports that failed in an error returned by Dispatch.
func FailedKinds(err error) []Kind {
	if err == nil {
		return nil
	}
	var out []Kind
	var walk func(error)
	walk = func(e error) {
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range j.Unwrap() {
				walk(inner)
			}
			return
		}
		var te *TransportError
		if errors.As(e, &te) {
			out = append(out, te.Kind)
		}
	}
	walk(err)
	return out
}
