package codec

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

func init() {
	Register("zlib", func(version string, params Params) (Codec, error) {
		level := params.intOr("level", 6)
		scale := params.floatOr("scale", 32767.0)
		inner, err := NewRawCodec(version, scale)
		if err != nil {
			return nil, err
		}
		return NewZlibCodec(version, inner, level)
	})
}

// ZlibCodec wraps an inner codec and deflates its output, for comparing
// generic compression against the fixed-point and learned variants.
type ZlibCodec struct {
	version string
	inner   Codec
	level   int
}

// NewZlibCodec wraps inner with zlib compression at the given level (0-9).
func NewZlibCodec(version string, inner Codec, level int) (*ZlibCodec, error) {
	if level < 0 || level > 9 {
		return nil, newError("codec: zlib level must be 0..9")
	}
	if inner == nil {
		var err error
		inner, err = NewRawCodec(version, 32767.0)
		if err != nil {
			return nil, err
		}
	}
	return &ZlibCodec{version: version, inner: inner, level: level}, nil
}

func (c *ZlibCodec) ID() string      { return "zlib" }
func (c *ZlibCodec) Version() string { return c.version }

func (c *ZlibCodec) Encode(window []float64) ([]byte, error) {
	raw, err := c.inner.Encode(window)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, newError("codec: zlib writer: %v", err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, newError("codec: zlib compress: %v", err)
	}
	if err := w.Close(); err != nil {
		return nil, newError("codec: zlib compress: %v", err)
	}
	return buf.Bytes(), nil
}

func (c *ZlibCodec) Decode(payload []byte) ([]float64, error) {
	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, newError("codec: zlib payload could not be decompressed: %v", err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, newError("codec: zlib payload could not be decompressed: %v", err)
	}
	return c.inner.Decode(raw)
}

func (c *ZlibCodec) PayloadSchema() string {
	return fmt.Sprintf("zlib(level=%d)+%s", c.level, c.inner.PayloadSchema())
}
