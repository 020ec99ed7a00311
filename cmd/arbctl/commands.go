package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hetulpatel/pricearb/internal/arb"
	"github.com/hetulpatel/pricearb/internal/collectors"
	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/report"
	"github.com/hetulpatel/pricearb/internal/service"
	"github.com/hetulpatel/pricearb/internal/sources"
	"github.com/hetulpatel/pricearb/internal/sources/amazon"
	"github.com/hetulpatel/pricearb/internal/sources/static"
)

func newFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("arbctl "+name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func runInit(ctx context.Context, e *env, args []string) error {
	if err := newFlagSet(e, "init").Parse(args); err != nil {
		return err
	}
	// OpenTracker already migrated the schema.
	fmt.Fprintln(e.stdout, "Database initialized!")
	return nil
}

// liveFlags selects the sources scraped on demand.
type liveFlags struct {
	amazonURLs  stringList
	amazonNames stringList
	static      bool
}

func (l *liveFlags) register(fs *flag.FlagSet, staticDefault bool) {
	fs.Var(&l.amazonURLs, "amazon-url", "Amazon product URL to scrape (repeatable)")
	fs.Var(&l.amazonNames, "amazon-name", "custom name for the matching --amazon-url (repeatable)")
	fs.BoolVar(&l.static, "static", staticDefault, "include the static catalogue")
}

func (l *liveFlags) sources(e *env) ([]collectors.Source, error) {
	var out []collectors.Source
	if len(l.amazonURLs) > 0 {
		if len(l.amazonNames) > 0 && len(l.amazonNames) != len(l.amazonURLs) {
			return nil, fmt.Errorf("%d --amazon-name values for %d --amazon-url values", len(l.amazonNames), len(l.amazonURLs))
		}
		cfg := amazon.FromConfig(e.cfg.Sources)
		cfg.URLs = l.amazonURLs
		cfg.Names = l.amazonNames
		src, err := amazon.New(cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	if l.static {
		out = append(out, static.New(e.cfg.Sources.StaticName))
	}
	return out, nil
}

// outputFlags control how opportunities are rendered.
type outputFlags struct {
	format string
	output string
}

func (o *outputFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&o.format, "format", "table", "output format: text, table or csv")
	fs.StringVar(&o.output, "output", "", "write results to this file (.xlsx writes a workbook)")
}

func (o *outputFlags) write(e *env, opps []models.Opportunity, includeTimestamp bool) error {
	format, err := report.ParseFormat(o.format)
	if err != nil {
		return err
	}
	if o.output == "" {
		return report.Write(e.stdout, format, opps, includeTimestamp)
	}

	f, err := os.Create(o.output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if strings.EqualFold(filepath.Ext(o.output), ".xlsx") {
		err = report.WriteXLSX(f, opps, includeTimestamp)
	} else {
		err = report.Write(f, format, opps, includeTimestamp)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Results saved to %s\n", o.output)
	return nil
}

func runScrape(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "scrape")
	var live liveFlags
	live.register(fs, false)
	name := fs.String("name", "", "snapshot description")
	save := fs.Bool("save", true, "store the scraped items as a snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}

	srcs, err := live.sources(e)
	if err != nil {
		return err
	}
	if len(srcs) == 0 {
		if srcs, err = sources.Build(e.cfg.Sources); err != nil {
			return err
		}
	}

	if !*save {
		listings, err := collectors.Collect(ctx, srcs)
		if err != nil {
			return err
		}
		printListings(e.stdout, listings)
		return nil
	}
	res, err := e.tracker.Capture(ctx, *name, srcs)
	if err != nil {
		return err
	}
	printListings(e.stdout, res.Listings)
	fmt.Fprintf(e.stdout, "Created snapshot: %s\n", res.Snapshot.ID)
	return nil
}

func runDetect(ctx context.Context, e *env, args []string) error {
	return detect(ctx, e, "detect", false, args)
}

func runFind(ctx context.Context, e *env, args []string) error {
	return detect(ctx, e, "find", true, args)
}

func detect(ctx context.Context, e *env, name string, saveDefault bool, args []string) error {
	fs := newFlagSet(e, name)
	var (
		live      liveFlags
		out       outputFlags
		minProfit = decimalFlag{value: e.cfg.Detector.MinProfit(), set: true}
	)
	live.register(fs, true)
	out.register(fs)
	snapshotID := fs.String("snapshot-id", "", "use the items of this snapshot")
	latest := fs.Bool("latest", false, "use the items of the latest snapshot")
	days := fs.Int("days", 0, "use every item captured in the last N days")
	itemsFile := fs.String("items", "", "JSON file of extra items ([{source,name,price,url}])")
	fs.Var(&minProfit, "min-profit", "minimum profit percentage")
	save := fs.Bool("save", saveDefault, "save the opportunities found")
	desc := fs.String("name", "", "description of the snapshot created when saving live items")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *days < 0 {
		return errors.New("--days must not be negative")
	}

	srcs, err := live.sources(e)
	if err != nil {
		return err
	}
	var extra []models.Listing
	if *itemsFile != "" {
		if extra, err = readItems(*itemsFile); err != nil {
			return err
		}
	}
	if len(srcs) == 0 && len(extra) == 0 && *snapshotID == "" && !*latest && *days == 0 {
		return errors.New("nothing to analyze: enable --static, pass --amazon-url, --items, --snapshot-id, --latest or --days")
	}

	threshold := minProfit.value
	res, err := e.tracker.Detect(ctx, service.DetectRequest{
		SnapshotID:       *snapshotID,
		Latest:           *latest,
		Since:            daysDuration(*days),
		Live:             srcs,
		Listings:         extra,
		MinProfitPercent: &threshold,
		Save:             *save,
		Description:      *desc,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Analyzed %d items.\n", len(res.Listings))
	if res.Saved {
		fmt.Fprintf(e.stdout, "Saved %d opportunities to snapshot %s\n", len(res.Opportunities), res.SnapshotID)
	}
	return out.write(e, res.Opportunities, false)
}

func runHistory(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "history")
	var (
		out       outputFlags
		minPct    decimalFlag
		minAmount decimalFlag
	)
	out.register(fs)
	snapshotID := fs.String("snapshot-id", "", "show opportunities from this snapshot")
	latest := fs.Bool("latest", false, "show opportunities from the latest snapshot")
	days := fs.Int("days", 7, "show opportunities from the last N days")
	fs.Var(&minPct, "min-profit-percent", "minimum profit percentage")
	fs.Var(&minAmount, "min-profit-amount", "minimum profit amount")
	limit := fs.Int("limit", 50, "maximum number of results")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := e.tracker.History(ctx, service.HistoryRequest{
		SnapshotID:       *snapshotID,
		Latest:           *latest,
		Days:             *days,
		MinProfitPercent: minPct.ptr(),
		MinProfitAmount:  minAmount.ptr(),
		Limit:            *limit,
	})
	if err != nil {
		return err
	}
	if res.SnapshotID != "" {
		fmt.Fprintf(e.stdout, "Opportunities from snapshot %s\n", res.SnapshotID)
	} else {
		fmt.Fprintf(e.stdout, "Opportunities from the last %d days\n", *days)
	}
	return out.write(e, res.Opportunities, true)
}

func runSnapshots(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "snapshots")
	limit := fs.Int("limit", 10, "maximum number of snapshots")
	if err := fs.Parse(args); err != nil {
		return err
	}
	snaps, err := e.tracker.Snapshots(ctx, *limit)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(e.stdout, "No snapshots found.")
		return nil
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIMESTAMP\tITEMS\tDESCRIPTION")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.Timestamp.Format("2006-01-02 15:04:05"), s.ListingCount, s.Description)
	}
	return tw.Flush()
}

func runItems(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "items")
	snapshotID := fs.String("snapshot-id", "", "snapshot to list (default latest)")
	source := fs.String("source", "", "only items from this source")
	limit := fs.Int("limit", 50, "maximum number of items")
	if err := fs.Parse(args); err != nil {
		return err
	}
	snap, listings, err := e.tracker.Items(ctx, service.ItemsRequest{
		SnapshotID: *snapshotID,
		Source:     *source,
		Limit:      *limit,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Snapshot %s (%s)\n", snap.ID, snap.Timestamp.Format("2006-01-02 15:04:05"))
	printListings(e.stdout, listings)
	return nil
}

func runDelete(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "delete")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: arbctl delete <snapshot-id>")
	}
	id := fs.Arg(0)
	if err := e.tracker.DeleteSnapshot(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Deleted snapshot %s\n", id)
	return nil
}

func printListings(w io.Writer, listings []models.Listing) {
	for i, l := range listings {
		fmt.Fprintf(w, "%d. %s\n", i+1, l.Name)
		fmt.Fprintf(w, "   Source: %s  Price: %s%s\n", l.Source, report.Currency, l.Price.StringFixed(2))
		if l.URL != "" {
			fmt.Fprintf(w, "   URL: %s\n", l.URL)
		}
	}
	fmt.Fprintf(w, "Total: %d products.\n", len(listings))
}

func readItems(path string) ([]models.Listing, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	var records []models.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode items %s: %w", path, err)
	}
	return arb.ListingsFromRecords(records)
}

func daysDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

// decimalFlag is an optional decimal flag.
type decimalFlag struct {
	value decimal.Decimal
	set   bool
}

func (d *decimalFlag) String() string {
	if !d.set {
		return ""
	}
	return d.value.String()
}

func (d *decimalFlag) Set(s string) error {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	d.value, d.set = v, true
	return nil
}

func (d *decimalFlag) ptr() *decimal.Decimal {
	if !d.set {
		return nil
	}
	v := d.value
	return &v
}
