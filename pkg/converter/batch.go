package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/james-see/midiroll/pkg/logging"
	"golang.org/x/sync/errgroup"
)

// ErrOutputCollision marks batch inputs that would write the same output file
var ErrOutputCollision = errors.New("output collision")

// Batch converts every input file into outDir as format to, running up to
// workers conversions at once. Each file is encoded sequentially, so the
// output matches a serial run. Per-file failures are reported in the
// results; the returned error is only set when ctx is cancelled. Inputs
// whose base names map to the same output are all skipped with
// ErrOutputCollision rather than overwriting each other.
func (c *Converter) Batch(ctx context.Context, inputs []string, outDir string, to Format, workers int) ([]ConversionResult, error) {
	if workers <= 0 {
		workers = 1
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx)
	results := make([]ConversionResult, len(inputs))

	outputs := make([]string, len(inputs))
	claimed := make(map[string][]string)
	for i, input := range inputs {
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		outputs[i] = filepath.Join(outDir, base+to.Extension())
		claimed[outputs[i]] = append(claimed[outputs[i]], input)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, input := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			output := outputs[i]
			if owners := claimed[output]; len(owners) > 1 {
				err := fmt.Errorf("%w: %s is the output for %s", ErrOutputCollision, output, strings.Join(owners, ", "))
				results[i] = ConversionResult{Input: input, Output: output, Error: err}
				logger.Error("conversion skipped", "input", input, "err", err)
				return nil
			}

			report, err := c.ConvertFile(input, output)
			results[i] = ConversionResult{Input: input, Output: output, Report: report, Error: err}
			if err != nil {
				logger.Error("conversion failed", "input", input, "err", err)
				return nil
			}
			logger.Debug("converted", "input", input, "output", output)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
