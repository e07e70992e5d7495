// Package ingest discovers promo codes in gzip-compressed code bases. A code
// is valid when it appears in at least a minimum number of bases.
//
// Each base is streamed twice: the first pass builds one bloom filter per
// base, the second pass keeps the codes that some other base's filter also
// reports. Memory stays proportional to the filters plus the candidates, not
// to the bases themselves.
package ingest

import (
	"bufio"
	"context"
	"math/bits"
	"os"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	MinCodeLen = 8
	MaxCodeLen = 10

	progressEvery = 10_000_000
)

// maxBases is bounded by the width of the per-code file bitmask.
const maxBases = bits.UintSize

// Options tunes ingestion.
type Options struct {
	// MinBases is the number of bases a code must appear in. Values below 2
	// accept every well-formed code.
	MinBases int
	// Capacity is the expected number of codes per base.
	Capacity uint
	// FalsePositiveRate of each bloom filter.
	FalsePositiveRate float64
}

func (o *Options) setDefaults() {
	if o.Capacity == 0 {
		o.Capacity = 1_000_000
	}
	if o.FalsePositiveRate <= 0 {
		o.FalsePositiveRate = 0.001
	}
}

// Codes returns the sorted codes found in at least opts.MinBases of files.
func Codes(ctx context.Context, files []string, opts Options) ([]string, error) {
	opts.setDefaults()
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > maxBases {
		return nil, errors.Errorf("too many code bases: %d > %d", len(files), maxBases)
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return nil, errors.Wrapf(err, "check file %s", f)
		}
	}

	lg := zctx.From(ctx)
	if opts.MinBases < 2 {
		return allCodes(ctx, files)
	}

	lg.Info("Building bloom filters", zap.Int("files", len(files)))
	filters, err := buildFilters(ctx, files, opts)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	lg.Info("Finding candidate codes")
	codes, err := findValidCodes(ctx, files, filters, opts.MinBases)
	if err != nil {
		return nil, errors.Wrap(err, "find valid codes")
	}

	lg.Info("Valid codes found", zap.Int("count", len(codes)))
	return codes, nil
}

func validLength(code string) bool {
	return len(code) >= MinCodeLen && len(code) <= MaxCodeLen
}

func allCodes(ctx context.Context, files []string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, f := range files {
		if err := streamGzFile(ctx, f, func(code string) {
			if validLength(code) {
				seen[code] = struct{}{}
			}
		}); err != nil {
			return nil, err
		}
	}
	return sortedKeys(seen), nil
}

// buildFilters creates one bloom filter per file, concurrently.
func buildFilters(ctx context.Context, files []string, opts Options) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(opts.Capacity, opts.FalsePositiveRate)
			var count uint64

			if err := streamGzFile(ctx, path, func(code string) {
				if !validLength(code) {
					return
				}
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					zctx.From(ctx).Info("Filter progress", zap.Int("file", i+1), zap.Uint64("codes", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}

			zctx.From(ctx).Debug("Filter complete", zap.Int("file", i+1), zap.Uint64("codes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findValidCodes re-streams each file and marks codes that some other file's
// filter also reports. A code present in N files is marked by all N of them.
func findValidCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter, minBases int) ([]string, error) {
	results := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			fileBit := uint(1) << uint(i)

			if err := streamGzFile(ctx, path, func(code string) {
				if !validLength(code) {
					return
				}
				for j, f := range filters {
					if j != i && f.TestString(code) {
						candidates[code] |= fileBit
						return
					}
				}
			}); err != nil {
				return errors.Wrapf(err, "scan file %d for candidates", i+1)
			}

			results[i] = candidates
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r {
			merged[code] |= mask
		}
	}

	valid := make(map[string]struct{})
	for code, mask := range merged {
		if bits.OnesCount(mask) >= minBases {
			valid[code] = struct{}{}
		}
	}
	return sortedKeys(valid), nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
