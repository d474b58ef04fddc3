package seret

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/moviedb-crawler/internal/crawler"
	"github.com/JakeFAU/moviedb-crawler/internal/htmlq"
	"github.com/JakeFAU/moviedb-crawler/internal/source"
)

// Extractor parses Seret movie pages.
type Extractor struct {
	fetcher crawler.Fetcher
	logger  *zap.Logger
}

// NewExtractor constructs an Extractor.
func NewExtractor(fetcher crawler.Fetcher, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{fetcher: fetcher, logger: logger}
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

	canonical, ok := doc.FindAttr(`link[rel="canonical"]`, "href")
	if !ok {
		return crawler.Failed(&crawler.ExtractError{URL: site.URL, Field: "canonical link"})
	}
	if canonical != site.URL {
		return crawler.NotCanonical(canonical)
	}

	fields, err := requiredFields(doc, site.URL)
	if err != nil {
		return crawler.Failed(err)
	}

	rawYear, _ := doc.FindText(`span[itemprop="dateCreated"]`)
	year, ok := source.ParseYear(rawYear)
	if !ok {
		source.WarnMissingYear(logger, site)
	}
	premiere, estimated := source.ResolvePremiere(logger, site, parsePremiere(doc), year)

	return crawler.Recorded(crawler.Record{
		Source:            Name,
		ID:                site.ID,
		URL:               site.URL,
		Priority:          site.Priority,
		Name:              fields.name,
		EnglishName:       fields.englishName,
		Keywords:          source.SplitKeywords(fields.keywords),
		Description:       fields.description,
		ImageURL:          &fields.image,
		Year:              year,
		Premiere:          premiere,
		PremiereEstimated: estimated,
	})
}

type pageFields struct {
	name        string
	englishName string
	keywords    string
	description string
	image       string
}

func requiredFields(doc *htmlq.Document, url string) (pageFields, error) {
	var (
		f  pageFields
		ok bool
	)
	if f.name, ok = doc.FindAttr(`meta[property="og:title"]`, "content"); !ok {
		return f, &crawler.ExtractError{URL: url, Field: "og:title"}
	}
	if f.englishName, ok = doc.FindText(`span[itemprop="alternatename"]`); !ok {
		return f, &crawler.ExtractError{URL: url, Field: "english name"}
	}
	if f.keywords, ok = doc.FindAttr(`meta[name="keywords"]`, "content"); !ok {
		return f, &crawler.ExtractError{URL: url, Field: "keywords"}
	}
	if f.description, ok = doc.FindText(`span[itemprop="description"]`); !ok {
		return f, &crawler.ExtractError{URL: url, Field: "description"}
	}
	if f.image, ok = doc.FindAttr(`meta[property="og:image"]`, "content"); !ok {
		return f, &crawler.ExtractError{URL: url, Field: "og:image"}
	}
	return f, nil
}

// parsePremiere reads the first token of datePublished as day/month/year.
func parsePremiere(doc *htmlq.Document) *time.Time {
	raw, ok := doc.FindText(`span[itemprop="datePublished"]`)
	if !ok {
		return nil
	}
	token, _, _ := strings.Cut(raw, " ")
	if token == "" {
		return nil
	}
	t, err := time.Parse("2/1/2006", token)
	if err != nil {
		return nil
	}
	return &t
}
