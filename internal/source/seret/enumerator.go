package seret

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/moviedb-crawler/internal/crawler"
)

// Enumerator reads movie pages from the sitemap.
type Enumerator struct {
	fetcher crawler.Fetcher
	blobs   crawler.BlobStore
	hasher  crawler.Hasher
	clock   crawler.Clock
	cfg     Config
	logger  *zap.Logger
}

// NewEnumerator constructs an Enumerator. blobs and hasher may be nil, in
// which case the raw sitemap is not kept.
func NewEnumerator(
	fetcher crawler.Fetcher,
	blobs crawler.BlobStore,
	hasher crawler.Hasher,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Enumerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enumerator{
		fetcher: fetcher,
		blobs:   blobs,
		hasher:  hasher,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// Enumerate implements crawler.Enumerator. An empty result is reported as
// crawler.ErrEmptyEnumeration.
func (e *Enumerator) Enumerate(ctx context.Context) ([]crawler.Site, error) {
	resp, err := e.fetcher.Fetch(ctx, crawler.FetchRequest{URL: e.cfg.SitemapURL})
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}
	if !resp.OK() {
		e.logger.Error("failed to get sitemap",
			zap.String("url", e.cfg.SitemapURL),
			zap.Int("status_code", resp.StatusCode),
		)
	}
	e.saveArtifact(ctx, resp.Body)

	sites, err := e.parseSitemap(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return nil, crawler.ErrEmptyEnumeration
	}
	e.logger.Info("found sites in sitemap", zap.Int("sites", len(sites)))
	return sites, nil
}

func (e *Enumerator) parseSitemap(body []byte) ([]crawler.Site, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}
	var sites []crawler.Site
	for _, entry := range xmlquery.Find(doc, "//url") {
		loc := entry.SelectElement("loc")
		if loc == nil {
			continue
		}
		url := strings.TrimSpace(loc.InnerText())
		if !strings.HasPrefix(url, e.cfg.MoviePrefix) {
			continue
		}
		id := url[strings.LastIndex(url, "MID=")+len("MID="):]
		if id == "" {
			continue
		}
		priority, ok := parsePriority(entry)
		if !ok {
			e.logger.Warn("skipping sitemap entry with invalid priority", zap.String("url", url))
			continue
		}
		sites = append(sites, crawler.Site{ID: id, URL: url, Priority: priority})
	}
	return sites, nil
}

func parsePriority(entry *xmlquery.Node) (float64, bool) {
	node := entry.SelectElement("priority")
	if node == nil {
		return 0, false
	}
	p, err := strconv.ParseFloat(strings.TrimSpace(node.InnerText()), 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

// saveArtifact keeps the raw sitemap for diagnostics. Failures are logged only.
func (e *Enumerator) saveArtifact(ctx context.Context, body []byte) {
	if e.blobs == nil || e.hasher == nil {
		return
	}
	digest, err := e.hasher.Hash(body)
	if err != nil {
		e.logger.Warn("hash sitemap failed", zap.Error(err))
		return
	}
	now := time.Now().UTC()
	if e.clock != nil {
		now = e.clock.Now()
	}
	objectPath := path.Join(e.cfg.ArtifactDir, now.Format(time.DateOnly), digest+".xml")
	uri, err := e.blobs.PutObject(ctx, objectPath, "application/xml", bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("store sitemap artifact failed", zap.String("path", objectPath), zap.Error(err))
		return
	}
	e.logger.Debug("stored sitemap artifact", zap.String("uri", uri))
}
