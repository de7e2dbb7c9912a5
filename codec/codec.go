// Package codec defines the pluggable payload-codec contract and the
// concrete variants (raw, sensor12_packed, sensor12_packed_truncate, zlib,
// bam, bam_placeholder) that turn a flat window of float64 samples into an
// on-air payload and back.
package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Error is returned by all codec encode/decode/construction failures.
type Error struct {
	msg string

	// NotImplemented marks a codec variant that intentionally refuses to
	// encode or decode, such as a placeholder standing in for artifacts
	// that haven't been trained yet. It is distinct from a malformed- or
	// oversized-payload failure: callers that care (e.g. the RX node's
	// reconstruction accounting) can branch on it with IsNotImplemented.
	NotImplemented bool
}

func (e *Error) Error() string { return e.msg }

func newError(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

func newNotImplementedError(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...), NotImplemented: true}
}

// IsNotImplemented reports whether err is a codec.Error marking a variant
// that intentionally refuses to encode/decode.
func IsNotImplemented(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.NotImplemented
	}
	return false
}

// Codec turns a flat window of samples into an on-air payload and back. The
// payload schema string binds the wire contract between TX and RX: peers
// must agree on PayloadSchemaHash() out of band before a run starts.
type Codec interface {
	ID() string
	Version() string
	Encode(window []float64) ([]byte, error)
	Decode(payload []byte) ([]float64, error)
	PayloadSchema() string
}

// PayloadSchemaHash returns the SHA-256 hex digest of a codec's schema
// string, used to bind run artifacts to a specific wire contract.
func PayloadSchemaHash(schema string) string {
	sum := sha256.Sum256([]byte(schema))
	return hex.EncodeToString(sum[:])
}

// Params is the free-form parameter bag carried by a codec spec, mirroring
// the runspec's codec.params map.
type Params map[string]any

func (p Params) floatOr(key string, def float64) float64 {
	if p == nil {
		return def
	}
	v, ok := p[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

func (p Params) intOr(key string, def int) int {
	if p == nil {
		return def
	}
	v, ok := p[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}

func (p Params) stringOr(key, def string) string {
	if p == nil {
		return def
	}
	v, ok := p[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// Factory builds a Codec from an id, version, and parameter bag, the way
// the runspec's codec section is resolved at run-start.
type Factory func(version string, params Params) (Codec, error)

var registry = map[string]Factory{}

// Register installs a factory for a codec id. Variant files call this from
// an init() so the registry is fully populated before Create runs.
func Register(id string, factory Factory) {
	registry[id] = factory
}

// Create resolves a codec by id, mirroring codecs/factory.py's
// create_codec dispatch.
func Create(id, version string, params Params) (Codec, error) {
	factory, ok := registry[id]
	if !ok {
		return nil, newError("codec: unknown codec id: %s", id)
	}
	return factory(version, params)
}
