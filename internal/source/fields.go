// Package source holds field helpers shared by the per-site extractors.
package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/moviedb-crawler/internal/crawler"
	"github.com/JakeFAU/moviedb-crawler/internal/htmlq"
)

// DataQualityPremiereAndYearMissing tags records with neither a year nor a
// premiere date.
const DataQualityPremiereAndYearMissing = "premiere_and_year_missing"

// FetchDocument fetches url and parses it as HTML. Non-2xx statuses are
// reported as *crawler.HTTPStatusError.
func FetchDocument(ctx context.Context, fetcher crawler.Fetcher, url string) (*htmlq.Document, error) {
	resp, err := fetcher.Fetch(ctx, crawler.FetchRequest{URL: url})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if !resp.OK() {
		return nil, &crawler.HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}
	doc, err := htmlq.ParseBytes(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}

// SplitKeywords splits a keywords meta value on commas, dropping blanks.
func SplitKeywords(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseYear parses a year marker such as "1999" or "(1999)".
func ParseYear(raw string) (*int, bool) {
	raw = strings.Trim(strings.TrimSpace(raw), "()")
	if raw == "" {
		return nil, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return nil, false
		}
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return nil, false
	}
	return &year, true
}

// ResolvePremiere applies the premiere fallback chain: the parsed date when
// present, else January 1 of year, else the zero time. The boolean reports
// whether the date is estimated.
func ResolvePremiere(logger *zap.Logger, site crawler.Site, parsed *time.Time, year *int) (time.Time, bool) {
	if parsed != nil {
		return *parsed, false
	}
	if year != nil {
		premiere := time.Date(*year, time.January, 1, 0, 0, 0, 0, time.UTC)
		logger.Warn("failed to get premiere, using start of year",
			zap.String("id", site.ID),
			zap.String("url", site.URL),
			zap.Time("premiere", premiere),
		)
		return premiere, true
	}
	logger.Warn("failed to get premiere and year",
		zap.String("id", site.ID),
		zap.String("url", site.URL),
		zap.String("data_quality", DataQualityPremiereAndYearMissing),
	)
	return time.Time{}, true
}

// WarnMissingYear logs a soft year extraction gap.
func WarnMissingYear(logger *zap.Logger, site crawler.Site) {
	logger.Warn("failed to get year", zap.String("id", site.ID), zap.String("url", site.URL))
}
