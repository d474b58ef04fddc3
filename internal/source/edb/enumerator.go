package edb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/moviedb-crawler/internal/crawler"
	"github.com/JakeFAU/moviedb-crawler/internal/htmlq"
	"github.com/JakeFAU/moviedb-crawler/internal/source"
)

// Enumerator walks the browse listing from StartPage to the last page.
type Enumerator struct {
	fetcher crawler.Fetcher
	cfg     Config
	retry   crawler.RetryPolicy
	logger  *zap.Logger
}

// NewEnumerator constructs an Enumerator. Each page is retried according to
// retry; a page that still fails aborts the enumeration.
func NewEnumerator(fetcher crawler.Fetcher, cfg Config, retry crawler.RetryPolicy, logger *zap.Logger) *Enumerator {
	if retry == nil {
		retry = crawler.NewFixedRetryPolicy(crawler.DefaultRetryAttempts, crawler.DefaultRetryDelay)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enumerator{
		fetcher: fetcher,
		cfg:     cfg.withDefaults(),
		retry:   retry,
		logger:  logger,
	}
}

// Enumerate implements crawler.Enumerator.
func (e *Enumerator) Enumerate(ctx context.Context) ([]crawler.Site, error) {
	start := e.cfg.StartPage
	var (
		doc   *htmlq.Document
		total int
	)
	if err := e.withRetry(ctx, start, func(ctx context.Context) error {
		var err error
		doc, err = source.FetchDocument(ctx, e.fetcher, e.pageURL(start))
		if err != nil {
			return err
		}
		total, err = totalPages(doc, e.pageURL(start))
		return err
	}); err != nil {
		return nil, err
	}
	e.logger.Info("found listing pages", zap.Int("total_pages", total))

	sites, err := e.parseListing(doc, e.pageURL(start), e.priority(start, total))
	if err != nil {
		return nil, err
	}
	e.logPage(start, total, len(sites))

	for page := start + 1; page <= total; page++ {
		var parsed []crawler.Site
		err := e.withRetry(ctx, page, func(ctx context.Context) error {
			doc, err := source.FetchDocument(ctx, e.fetcher, e.pageURL(page))
			if err != nil {
				return err
			}
			parsed, err = e.parseListing(doc, e.pageURL(page), e.priority(page, total))
			return err
		})
		if err != nil {
			return nil, err
		}
		sites = append(sites, parsed...)
		e.logPage(page, total, len(sites))
	}
	return sites, nil
}

func (e *Enumerator) withRetry(ctx context.Context, page int, fn func(context.Context) error) error {
	return crawler.Retry(ctx, e.retry, e.logger, fmt.Sprintf("fetch edb listing page %d", page), fn)
}

func (e *Enumerator) logPage(page, total, found int) {
	e.logger.Info("parsed listing page",
		zap.String("page", fmt.Sprintf("%d/%d", page, total)),
		zap.Int("sites_total", found),
	)
}

// priority boosts pages near the end of the year-ascending listing, which
// hold the newest titles.
func (e *Enumerator) priority(page, total int) float64 {
	if total-page < e.cfg.NearEndPages {
		return highPriority
	}
	return normalPriority
}

func (e *Enumerator) pageURL(page int) string {
	sep := "&"
	if !strings.Contains(e.cfg.SearchURL, "?") {
		sep = "?"
	}
	return e.cfg.SearchURL + sep + "page=" + strconv.Itoa(page)
}

func (e *Enumerator) parseListing(doc *htmlq.Document, pageURL string, priority float64) ([]crawler.Site, error) {
	container := doc.Find("main#main-container")
	if !container.Exists() {
		return nil, &crawler.ExtractError{URL: pageURL, Field: "listing container"}
	}
	items := container.Find("li").All()
	sites := make([]crawler.Site, 0, len(items))
	for _, item := range items {
		href, ok := item.Find("a[href]").Attr("href")
		if !ok {
			continue
		}
		id, ok := titleID(href)
		if !ok {
			e.logger.Debug("skipping listing entry without title id", zap.String("href", href))
			continue
		}
		sites = append(sites, crawler.Site{ID: id, URL: e.cfg.BaseURL + href, Priority: priority})
	}
	return sites, nil
}

func titleID(href string) (string, bool) {
	_, rest, ok := strings.Cut(href, "/title/")
	if !ok {
		return "", false
	}
	id, _, _ := strings.Cut(rest, "/")
	return id, id != ""
}

func totalPages(doc *htmlq.Document, pageURL string) (int, error) {
	href, ok := doc.FindAttr("span.last a[href]", "href")
	if !ok {
		return 0, &crawler.ExtractError{URL: pageURL, Field: "last page link"}
	}
	raw := ""
	if u, err := url.Parse(href); err == nil {
		raw = u.Query().Get("page")
	}
	if raw == "" {
		_, after, _ := strings.Cut(href, "page=")
		raw, _, _ = strings.Cut(after, "&")
	}
	total, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || total <= 0 {
		return 0, fmt.Errorf("parse total pages from %q: invalid page number", href)
	}
	return total, nil
}
