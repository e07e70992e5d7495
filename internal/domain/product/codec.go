package product

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-funnel/internal/wire"
)

// ProductCodec is the JSON codec for products. Decoding accepts both the
// catalog API shape and the legacy course shape (course_name, regular_price).
var ProductCodec = wire.Codec[Product]{Encode: EncodeProduct, Decode: DecodeProduct}

// PackageCodec is the JSON codec for packages.
var PackageCodec = wire.Codec[Package]{Encode: EncodePackage, Decode: DecodePackage}

// EncodeProduct writes p as a JSON object.
func EncodeProduct(e *jx.Encoder, p Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	e.Str(p.Price.StringFixed(2))
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.FieldStart("store_id")
	e.Str(p.StoreID)
	if p.Image != "" {
		e.FieldStart("image")
		e.Str(p.Image)
	}
	e.ObjEnd()
}

// DecodeProduct reads a product object. Unknown fields are skipped.
func DecodeProduct(d *jx.Decoder) (Product, error) {
	var p Product
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = wire.ID(d)
		case "name", "course_name":
			p.Name, err = wire.Str(d)
		case "description":
			p.Description, err = wire.Str(d)
		case "price", "regular_price":
			p.Price, err = wire.Decimal(d)
		case "stock":
			p.Stock, err = wire.Int(d)
		case "store_id":
			p.StoreID, err = wire.ID(d)
		case "image":
			p.Image, err = wire.Str(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %s", key)
		}
		return nil
	})
	if err != nil {
		return Product{}, errors.Wrap(err, "decode product")
	}
	return p, nil
}

// EncodePackage writes p as a JSON object in the packages API shape.
func EncodePackage(e *jx.Encoder, p Package) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("total_price")
	e.Str(p.Price.StringFixed(2))
	e.FieldStart("number_of_uses")
	e.Int(p.Uses)
	e.FieldStart("profit_percentages")
	e.ArrStart()
	for _, tier := range p.ProfitTiers {
		e.Str(tier.String())
	}
	e.ArrEnd()
	e.FieldStart("store_id")
	e.Str(p.StoreID)
	if p.Image != "" {
		e.FieldStart("image")
		e.Str(p.Image)
	}
	e.ObjEnd()
}

// DecodePackage reads a package object. When the object carries an images
// list, the first entry's path is used unless an explicit image is present.
func DecodePackage(d *jx.Decoder) (Package, error) {
	var (
		p         Package
		firstPath string
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = wire.ID(d)
		case "name":
			p.Name, err = wire.Str(d)
		case "total_price", "price":
			p.Price, err = wire.Decimal(d)
		case "number_of_uses":
			p.Uses, err = wire.Int(d)
		case "profit_percentages":
			p.ProfitTiers, err = decodeTiers(d)
		case "store_id":
			p.StoreID, err = wire.ID(d)
		case "image":
			p.Image, err = wire.Str(d)
		case "images":
			firstPath, err = decodeFirstImage(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %s", key)
		}
		return nil
	})
	if err != nil {
		return Package{}, errors.Wrap(err, "decode package")
	}
	if p.Image == "" {
		p.Image = firstPath
	}
	return p, nil
}

func decodeTiers(d *jx.Decoder) ([]decimal.Decimal, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var tiers []decimal.Decimal
	err := d.Arr(func(d *jx.Decoder) error {
		v, err := wire.Decimal(d)
		if err != nil {
			return err
		}
		tiers = append(tiers, v)
		return nil
	})
	return tiers, err
}

func decodeFirstImage(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	var first string
	err := d.Arr(func(d *jx.Decoder) error {
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "image" || first != "" {
				return d.Skip()
			}
			v, err := wire.Str(d)
			first = v
			return err
		})
	})
	return first, err
}
