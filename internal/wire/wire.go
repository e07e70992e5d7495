// Package wire holds the jx helpers shared by every JSON codec in the module:
// the remote catalog API, durable snapshots and the checkout endpoint.
package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Codec encodes and decodes a single value of T.
type Codec[T any] struct {
	Encode func(e *jx.Encoder, v T)
	Decode func(d *jx.Decoder) (T, error)
}

// EncodeArray serializes values as a JSON array.
func EncodeArray[T any](c Codec[T], values []T) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ArrStart()
	for _, v := range values {
		c.Encode(e, v)
	}
	e.ArrEnd()

	return append([]byte(nil), e.Bytes()...)
}

// DecodeArray parses a JSON array of T. A JSON null decodes to an empty slice.
func DecodeArray[T any](c Codec[T], data []byte) ([]T, error) {
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Null {
		return []T{}, d.Null()
	}

	out := []T{}
	if err := d.Arr(func(d *jx.Decoder) error {
		v, err := c.Decode(d)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode array")
	}
	return out, nil
}

// ID reads an identifier that the upstream API emits either as a number or
// as a string. Null yields an empty id.
func ID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("unexpected id type %s", d.Next())
	}
}

// Decimal reads a monetary amount encoded as a JSON string ("12.50") or a
// JSON number (12.5). Null yields zero.
func Decimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		if s == "" {
			return decimal.Zero, nil
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "parse amount %q", s)
		}
		return v, nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "parse amount %s", n)
		}
		return v, nil
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Zero, errors.Errorf("unexpected amount type %s", d.Next())
	}
}

// Int reads a whole number that may be quoted. Null yields zero. Fractional
// values are rejected rather than truncated.
func Int(d *jx.Decoder) (int, error) {
	switch d.Next() {
	case jx.Number, jx.String, jx.Null:
		v, err := Decimal(d)
		if err != nil {
			return 0, err
		}
		if !v.IsInteger() {
			return 0, errors.Errorf("expected whole number, got %s", v)
		}
		if !v.Equal(decimal.NewFromInt(v.IntPart())) {
			return 0, errors.Errorf("integer %s out of range", v)
		}
		return int(v.IntPart()), nil
	default:
		return 0, errors.Errorf("unexpected integer type %s", d.Next())
	}
}

// Str reads a string field that may be null.
func Str(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
