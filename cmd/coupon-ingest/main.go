// Command coupon-ingest finds the promo codes shared by gzip code bases and
// prints them with the discount rule each one maps to.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-funnel/internal/coupon/ingest"
	"github.com/xenking/kart-funnel/internal/domain/coupon"
)

func main() {
	var (
		pattern  string
		minBases int
		capacity uint
	)
	flag.StringVar(&pattern, "bases", "data/couponbase*.gz", "glob of gzip code bases")
	flag.IntVar(&minBases, "min-bases", 2, "number of bases a code must appear in")
	flag.UintVar(&capacity, "capacity", 120_000_000, "expected codes per base")
	flag.Parse()

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		ctx = zctx.Base(ctx, lg)
		return run(ctx, os.Stdout, pattern, ingest.Options{MinBases: minBases, Capacity: capacity})
	})
}

func run(ctx context.Context, w io.Writer, pattern string, opts ingest.Options) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrap(err, "match bases")
	}
	if len(files) == 0 {
		return errors.Errorf("no code bases match %q", pattern)
	}

	codes, err := ingest.Codes(ctx, files, opts)
	if err != nil {
		return errors.Wrap(err, "ingest codes")
	}
	zctx.From(ctx).Info("Code bases ingested",
		zap.Int("bases", len(files)),
		zap.Int("count", len(codes)),
	)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range ingest.Rules(codes) {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Code, describe(r), r.Description)
	}
	return tw.Flush()
}

func describe(r coupon.Rule) string {
	switch r.Kind {
	case coupon.KindFixed:
		return r.Value.StringFixed(2) + " off"
	default:
		return r.Value.String() + "% off"
	}
}
