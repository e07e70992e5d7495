package order

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-funnel/internal/wire"
)

// LineCodec and OrderCodec are the JSON codecs of the checkout endpoint.
var (
	LineCodec  = wire.Codec[Line]{Encode: EncodeLine, Decode: DecodeLine}
	OrderCodec = wire.Codec[Order]{Encode: EncodeOrder, Decode: DecodeOrder}
)

// EncodeLine writes l as a JSON object.
func EncodeLine(e *jx.Encoder, l Line) {
	e.ObjStart()
	e.FieldStart("itemId")
	e.Str(l.ItemID)
	e.FieldStart("kind")
	e.Str(l.Kind)
	e.FieldStart("name")
	e.Str(l.Name)
	e.FieldStart("price")
	e.Str(l.Price.StringFixed(2))
	e.FieldStart("quantity")
	e.Int(l.Quantity)
	e.ObjEnd()
}

// DecodeLine reads a Line, skipping unknown fields.
func DecodeLine(d *jx.Decoder) (Line, error) {
	var l Line
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "itemId":
			l.ItemID, err = wire.ID(d)
		case "kind":
			l.Kind, err = wire.Str(d)
		case "name":
			l.Name, err = wire.Str(d)
		case "price":
			l.Price, err = wire.Decimal(d)
		case "quantity":
			l.Quantity, err = wire.Int(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %s", key)
		}
		return nil
	})
	return l, err
}

// EncodeOrder writes o as a JSON object.
func EncodeOrder(e *jx.Encoder, o Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range o.Lines {
		EncodeLine(e, l)
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	e.Str(o.Subtotal.StringFixed(2))
	e.FieldStart("discount")
	e.Str(o.Discount.StringFixed(2))
	e.FieldStart("total")
	e.Str(o.Total.StringFixed(2))
	if o.CouponCode != "" {
		e.FieldStart("couponCode")
		e.Str(o.CouponCode)
	}
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
}

// DecodeOrder reads an Order. Status is matched case-insensitively so that
// "Processed" from older endpoints is accepted.
func DecodeOrder(d *jx.Decoder) (Order, error) {
	var o Order
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id", "orderId":
			o.ID, err = wire.ID(d)
		case "status":
			var s string
			s, err = wire.Str(d)
			o.Status = parseStatus(s)
		case "lines":
			err = d.Arr(func(d *jx.Decoder) error {
				l, err := DecodeLine(d)
				if err != nil {
					return err
				}
				o.Lines = append(o.Lines, l)
				return nil
			})
		case "subtotal":
			o.Subtotal, err = wire.Decimal(d)
		case "discount":
			o.Discount, err = wire.Decimal(d)
		case "total", "totalPrice":
			o.Total, err = wire.Decimal(d)
		case "couponCode":
			o.CouponCode, err = wire.Str(d)
		case "createdAt":
			var s string
			if s, err = wire.Str(d); err == nil && s != "" {
				o.CreatedAt, err = time.Parse(time.RFC3339Nano, s)
			}
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %s", key)
		}
		return nil
	})
	return o, err
}

func parseStatus(s string) Status {
	if strings.EqualFold(s, string(StatusProcessed)) {
		return StatusProcessed
	}
	return Status(s)
}
