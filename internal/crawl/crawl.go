// Package crawl walks the listing pages of a source with a worker pool and
// exports every item, and optionally every series detail, as JSON lines.
package crawl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/brogergvhs/showscrape/internal/domain"
	"github.com/brogergvhs/showscrape/internal/query"
	"github.com/brogergvhs/showscrape/internal/ui"
)

// Engine is the part of the engine a crawl drives.
type Engine interface {
	Listing(ctx context.Context, sourceID string, page int, filters map[query.Filter]string) (domain.ListingResult, error)
	Detail(ctx context.Context, sourceID, id string) (domain.DetailRecord, error)
}

type Options struct {
	Source  string
	From    int
	// To is the last page; 0 walks to the last page the pager announces.
	To      int
	Filters map[query.Filter]string
	Workers int
	// Details also exports the detail record of every distinct series.
	Details bool
	// SkipBroken keeps going when pages or details fail.
	SkipBroken bool
}

// Record is one exported line.
type Record struct {
	Kind   string               `json:"kind"`
	Source string               `json:"source"`
	Page   int                  `json:"page,omitempty"`
	ID     string               `json:"id,omitempty"`
	Item   *domain.ListingItem  `json:"item,omitempty"`
	Detail *domain.DetailRecord `json:"detail,omitempty"`
}

type Crawler struct {
	eng      Engine
	out      *lineWriter
	log      *ui.Logger
	progress *ui.MPBProgressManager
}

// New creates a crawler writing JSON lines to out. progress may be nil.
func New(eng Engine, out io.Writer, log *ui.Logger, progress *ui.MPBProgressManager) *Crawler {
	if log == nil {
		log = ui.NopLogger()
	}
	return &Crawler{
		eng:      eng,
		out:      &lineWriter{out: out},
		log:      log,
		progress: progress,
	}
}

// Run performs the crawl. The first page is fetched alone to learn the
// page count; the rest are spread over the workers.
func (c *Crawler) Run(ctx context.Context, opts Options) (*ui.Stats, error) {
	stats := &ui.Stats{}
	if opts.From < 1 {
		opts.From = 1
	}
	if opts.To != 0 && opts.To < opts.From {
		return stats, fmt.Errorf("invalid page range %d..%d", opts.From, opts.To)
	}

	first, err := c.eng.Listing(ctx, opts.Source, opts.From, opts.Filters)
	if err != nil {
		return stats, fmt.Errorf("page %d: %w", opts.From, err)
	}

	last := opts.To
	if last == 0 {
		last = max(first.Pagination.MaxPage, opts.From)
	}

	pagesBar := c.progress.Register(opts.Source+" pages", "pages")
	pagesBar.SetTotal(last - opts.From + 1)

	pages := map[int][]domain.ListingItem{opts.From: first.Items}
	if err := c.writeItems(opts.Source, opts.From, first.Items, stats); err != nil {
		return stats, err
	}
	stats.Pages.Add(1)
	pagesBar.Update(1, 0, stats.Bytes.Load())

	var mu sync.Mutex
	var errs []error
	rest := make([]int, 0, last-opts.From)
	for p := opts.From + 1; p <= last; p++ {
		rest = append(rest, p)
	}

	err = runPool(ctx, opts.Workers, rest, func(p int) error {
		res, err := c.eng.Listing(ctx, opts.Source, p, opts.Filters)
		if err == nil {
			mu.Lock()
			pages[p] = res.Items
			mu.Unlock()
			err = c.writeItems(opts.Source, p, res.Items, stats)
		}
		if err != nil {
			stats.Failed.Add(1)
			c.log.Warnf("page %d: %v", p, err)
			mu.Lock()
			errs = append(errs, fmt.Errorf("page %d: %w", p, err))
			mu.Unlock()
		} else {
			stats.Pages.Add(1)
		}
		pagesBar.Update(int(stats.Pages.Load()+stats.Failed.Load()), 0, stats.Bytes.Load())
		return nil
	})
	pagesBar.MarkDone()
	if err != nil {
		return stats, err
	}
	if len(errs) > 0 && !opts.SkipBroken {
		return stats, fmt.Errorf("failed %d/%d pages (use --skip-broken to continue): %w", len(errs), last-opts.From+1, errors.Join(errs...))
	}

	if !opts.Details {
		return stats, nil
	}
	return stats, c.details(ctx, opts, seriesIDs(pages), stats)
}

func (c *Crawler) details(ctx context.Context, opts Options, ids []string, stats *ui.Stats) error {
	bar := c.progress.Register(opts.Source+" details", "series")
	bar.SetTotal(len(ids))

	var mu sync.Mutex
	var errs []error
	var done int
	err := runPool(ctx, opts.Workers, ids, func(id string) error {
		rec, err := c.eng.Detail(ctx, opts.Source, id)
		if err == nil {
			err = c.out.write(Record{Kind: "detail", Source: opts.Source, ID: id, Detail: &rec}, stats)
		}

		mu.Lock()
		defer mu.Unlock()
		done++
		if err != nil {
			stats.Failed.Add(1)
			errs = append(errs, fmt.Errorf("detail %s: %w", id, err))
			c.log.Warnf("detail %s: %v", id, err)
		} else {
			stats.Details.Add(1)
		}
		bar.Update(done, 0, stats.Bytes.Load())
		return nil
	})
	bar.MarkDone()
	if err != nil {
		return err
	}
	if len(errs) > 0 && !opts.SkipBroken {
		return fmt.Errorf("failed %d/%d details (use --skip-broken to continue): %w", len(errs), len(ids), errors.Join(errs...))
	}
	return nil
}

func (c *Crawler) writeItems(source string, page int, items []domain.ListingItem, stats *ui.Stats) error {
	for i := range items {
		if err := c.out.write(Record{Kind: "item", Source: source, Page: page, Item: &items[i]}, stats); err != nil {
			return err
		}
		stats.Items.Add(1)
	}
	return nil
}

// seriesIDs returns the distinct canonical ids in page order.
func seriesIDs(pages map[int][]domain.ListingItem) []string {
	nums := make([]int, 0, len(pages))
	for p := range pages {
		nums = append(nums, p)
	}
	sort.Ints(nums)

	seen := map[string]bool{}
	var ids []string
	for _, p := range nums {
		for _, it := range pages[p] {
			if it.CanonicalID == "" || seen[it.CanonicalID] {
				continue
			}
			seen[it.CanonicalID] = true
			ids = append(ids, it.CanonicalID)
		}
	}
	return ids
}

// lineWriter serializes records from concurrent workers.
type lineWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *lineWriter) write(r Record, stats *ui.Stats) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	b = append(b, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(b); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	stats.Bytes.Add(int64(len(b)))
	return nil
}
