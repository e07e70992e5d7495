// Package remote talks to the storefront API: the product and package
// catalogs and the checkout endpoint.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/kart-funnel/internal/domain/order"
	"github.com/xenking/kart-funnel/internal/domain/product"
	"github.com/xenking/kart-funnel/internal/wire"
)

const maxBodySize = 8 << 20

var (
	_ product.Source = (*Client)(nil)
	_ order.Placer   = (*Client)(nil)
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
}

// Client is the storefront API client.
type Client struct {
	base  *url.URL
	media string
	http  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is used
// as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMediaBaseURL sets the base URL that relative package image paths are
// resolved against. Defaults to the API base URL.
func WithMediaBaseURL(u string) Option {
	return func(c *Client) { c.media = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{
		base:  u,
		media: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Products fetches GET /api/product-all.
func (c *Client) Products(ctx context.Context) ([]product.Product, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/product-all", nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeList(product.ProductCodec, body)
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return items, nil
}

// Packages fetches GET /api/packages and resolves image paths against the
// media base URL.
func (c *Client) Packages(ctx context.Context) ([]product.Package, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/packages", nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeList(product.PackageCodec, body)
	if err != nil {
		return nil, errors.Wrap(err, "decode packages")
	}
	for i := range items {
		items[i].Image = c.resolveMedia(items[i].Image)
	}
	return items, nil
}

// Place submits the request to POST /checkout.
func (c *Client) Place(ctx context.Context, req order.Request) (*order.Order, error) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range req.Lines {
		order.EncodeLine(e, l)
	}
	e.ArrEnd()
	if req.Coupon != nil {
		e.FieldStart("couponCode")
		e.Str(req.Coupon.Code)
	}
	e.ObjEnd()

	body, err := c.do(ctx, http.MethodPost, "/checkout", e.Bytes())
	if err != nil {
		return nil, err
	}
	o, err := order.DecodeOrder(jx.DecodeBytes(body))
	if err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	if o.ID == "" {
		return nil, errors.New("checkout response has no order id")
	}
	if o.Lines == nil {
		o.Lines = append([]order.Line(nil), req.Lines...)
	}
	return &o, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	u := c.base.JoinPath(path)

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	return body, nil
}

func (c *Client) resolveMedia(p string) string {
	if p == "" {
		return ""
	}
	if u, err := url.Parse(p); err == nil && u.IsAbs() {
		return p
	}
	return c.media + "/" + strings.TrimLeft(p, "/")
}

// decodeList accepts a bare JSON array or an object wrapping it in "data".
func decodeList[T any](codec wire.Codec[T], body []byte) ([]T, error) {
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return wire.DecodeArray(codec, body)
	}

	var (
		raw   jx.Raw
		found bool
	)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "data" {
			return d.Skip()
		}
		found = true
		var err error
		raw, err = d.Raw()
		return err
	}); err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New("response object has no data field")
	}
	return wire.DecodeArray(codec, raw)
}
