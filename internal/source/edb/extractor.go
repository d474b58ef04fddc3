package edb

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/moviedb-crawler/internal/crawler"
	"github.com/JakeFAU/moviedb-crawler/internal/source"
)

var premiereDate = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}`)

// Extractor parses EDB title pages.
type Extractor struct {
	fetcher crawler.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// NewExtractor constructs an Extractor.
func NewExtractor(fetcher crawler.Fetcher, cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{fetcher: fetcher, cfg: cfg.withDefaults(), logger: logger}
}

// Extract implements crawler.Extractor.
func (x *Extractor) Extract(ctx context.Context, site crawler.Site, index, total int) crawler.Outcome {
	logger := x.logger.With(
		zap.String("id", site.ID),
		zap.String("progress", fmt.Sprintf("%d/%d", index, total)),
	)
	doc, err := source.FetchDocument(ctx, x.fetcher, site.URL)
	if err != nil {
		return crawler.Failed(err)
	}

	// EDB declares canonical links relative to the site root.
	canonical, ok := doc.FindAttr(`link[rel="canonical"]`, "href")
	if !ok {
		return crawler.Failed(&crawler.ExtractError{URL: site.URL, Field: "canonical link"})
	}
	if canonical != strings.TrimPrefix(site.URL, x.cfg.BaseURL) {
		return crawler.NotCanonical(canonical)
	}

	block := doc.Find("div.tpgfocusmain").First()
	if !block.Exists() {
		return crawler.Failed(&crawler.ExtractError{URL: site.URL, Field: "title block"})
	}
	heading := block.Find(`h1[itemprop="name"]`).First()
	name, ok := heading.FirstChildText()
	if !ok {
		return crawler.Failed(&crawler.ExtractError{URL: site.URL, Field: "name"})
	}
	englishName, ok := block.Find("h2").First().Text()
	if !ok {
		return crawler.Failed(&crawler.ExtractError{URL: site.URL, Field: "english name"})
	}
	keywords, ok := doc.FindAttr(`meta[name="keywords"]`, "content")
	if !ok {
		return crawler.Failed(&crawler.ExtractError{URL: site.URL, Field: "keywords"})
	}
	image, ok := doc.FindAttr(`meta[property="og:image"]`, "content")
	if !ok {
		return crawler.Failed(&crawler.ExtractError{URL: site.URL, Field: "og:image"})
	}
	var imageURL *string
	if image != placeholderImage {
		imageURL = &image
	}

	description := NoDescription
	if text, ok := doc.Find("div.par_ind").Last().Text(); ok {
		description = text
	}

	rawYear, _ := heading.Find("span").First().Text()
	year, ok := source.ParseYear(rawYear)
	if !ok {
		source.WarnMissingYear(logger, site)
	}

	premiere, estimated := source.ResolvePremiere(logger, site, parsePremiere(doc.FindTextMatching(premiereMarker)), year)

	return crawler.Recorded(crawler.Record{
		Source:            Name,
		ID:                site.ID,
		URL:               site.URL,
		Priority:          site.Priority,
		Name:              name,
		EnglishName:       englishName,
		Keywords:          source.SplitKeywords(keywords),
		Description:       description,
		ImageURL:          imageURL,
		Year:              year,
		Premiere:          premiere,
		PremiereEstimated: estimated,
	})
}

func parsePremiere(section string, found bool) *time.Time {
	if !found {
		return nil
	}
	raw := premiereDate.FindString(section)
	if raw == "" {
		return nil
	}
	t, err := time.Parse("02.01.2006", raw)
	if err != nil {
		return nil
	}
	return &t
}
