// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/zerohunger/connect/advisory"
	"github.com/zerohunger/connect/geocode"
	"github.com/zerohunger/connect/matching"
	"github.com/zerohunger/connect/registry"
	"github.com/zerohunger/connect/spatial"
	"github.com/zerohunger/connect/utils/textutils"
	"golang.org/x/sync/errgroup"
)

// vendorRow is one line of a batch file.
type vendorRow struct {
	Line       int
	VendorName string
	Address    string
	FoodType   string
	Quantity   string
}

// addressLocation is the outcome of resolving a batch row's address.
type addressLocation struct {
	label string
	point *spatial.Point
}

func (a addressLocation) Resolved() (geocode.ResolvedLocation, bool) {
	if a.point == nil {
		return geocode.ResolvedLocation{}, false
	}

	return geocode.ResolvedLocation{Label: a.label, Point: *a.point}, true
}

func readVendorRows(r io.Reader) ([]vendorRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading header: %w", err)
	}

	var rows []vendorRow

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		line, _ := reader.FieldPos(0)

		get := func(i int) string {
			if i < len(record) {
				return strings.TrimSpace(record[i])
			}

			return ""
		}

		rows = append(rows, vendorRow{
			Line:       line,
			VendorName: get(0),
			Address:    get(1),
			FoodType:   get(2),
			Quantity:   get(3),
		})
	}

	return rows, nil
}

var batchOptions struct {
	Concurrency int
	Advice      bool
}

var batchCmd = &cobra.Command{
	Use:   "batch <vendors.csv>",
	Short: "Submit donations for every row of a CSV (vendor_name,address,food_type,quantity)",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		rows, err := readVendorRows(f)
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		db, _, points, err := openCatalog()
		if err != nil {
			return err
		}
		defer db.Close()

		resolver, err := newResolver(nil)
		if err != nil {
			return err
		}

		posts := registry.New(registry.Options{})
		advisor := advisory.New(context.Background(), os.Getenv("GEMINI_API_KEY"), advisory.GeminiOptions{})
		pipeline := matching.New(points, posts, advisor, matching.Options{})

		subs, err := runBatch(context.Background(), rows, resolver, pipeline)

		for _, sub := range subs {
			fmt.Printf("%-36s %-28s -> %s\n", sub.Post.ID, textutils.Truncate(sub.Post.VendorName, 27), sub.Post.TargetCommunity)

			if sub.Advisory != "" {
				fmt.Printf("    %s\n", sub.Advisory)
			}
		}

		log.Printf("✅ %s/%s donations submitted",
			textutils.FormatInt(int64(len(subs))), textutils.FormatInt(int64(len(rows))))

		return err
	},
}

// runBatch resolves and submits every row with bounded concurrency. Failed
// rows do not stop the others; their errors are joined.
func runBatch(ctx context.Context, rows []vendorRow, lookup geocode.Lookup, pipeline *matching.Pipeline) ([]*matching.Submission, error) {
	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(rows),
			progressbar.OptionSetDescription("Submitting donations"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	var (
		mu   sync.Mutex
		subs = make([]*matching.Submission, len(rows))
		errs []error
	)

	g := new(errgroup.Group)
	g.SetLimit(max(batchOptions.Concurrency, 1))

	for i, row := range rows {
		g.Go(func() error {
			defer func() {
				if bar != nil {
					_ = bar.Add(1)
				}
			}()

			loc := addressLocation{label: row.Address, point: lookup.Resolve(ctx, row.Address)}

			sub, err := pipeline.Submit(ctx, loc, matching.VendorInput{
				VendorName:    row.VendorName,
				VendorAddress: row.Address,
				FoodType:      row.FoodType,
				Quantity:      row.Quantity,
				WantAdvice:    batchOptions.Advice,
			})
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("line %d (%s): %w", row.Line, row.Address, err))
				mu.Unlock()

				return nil
			}

			subs[i] = sub

			return nil
		})
	}

	_ = g.Wait()

	if bar != nil {
		_ = bar.Finish()
	}

	done := make([]*matching.Submission, 0, len(subs))

	for _, sub := range subs {
		if sub != nil {
			done = append(done, sub)
		}
	}

	return done, errors.Join(errs...)
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().IntVar(&batchOptions.Concurrency, "concurrency", 4, "Rows processed in parallel")
	batchCmd.Flags().BoolVar(&batchOptions.Advice, "advice", false, "Ask the advisory service for each donation")
}
