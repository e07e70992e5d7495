package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-funnel/internal/wire"
)

// LineCodec serializes a line as {"item": <item>, "quantity": n}.
func LineCodec[T Item](item wire.Codec[T]) wire.Codec[Line[T]] {
	return wire.Codec[Line[T]]{
		Encode: func(e *jx.Encoder, l Line[T]) {
			e.ObjStart()
			e.FieldStart("item")
			item.Encode(e, l.Item)
			e.FieldStart("quantity")
			e.Int(l.Quantity)
			e.ObjEnd()
		},
		Decode: func(d *jx.Decoder) (Line[T], error) {
			var l Line[T]
			err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				switch string(key) {
				case "item":
					v, err := item.Decode(d)
					if err != nil {
						return errors.Wrap(err, "field item")
					}
					l.Item = v
				case "quantity":
					n, err := wire.Int(d)
					if err != nil {
						return errors.Wrap(err, "field quantity")
					}
					l.Quantity = n
				default:
					return d.Skip()
				}
				return nil
			})
			return l, err
		},
	}
}
