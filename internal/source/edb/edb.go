// Package edb crawls the EDB movie database: a paginated browse listing
// enumerated page by page, and title pages extracted from their focus block.
package edb

import (
	"strings"
)

// Name is the source tag stored with every EDB record and cache entry.
const Name = "edb"

// Site defaults.
const (
	DefaultBaseURL      = "https://www.edb.co.il"
	DefaultSearchURL    = "https://www.edb.co.il/browse/browse.php?type[]=1&type[]=2&type[]=5&type[]=6&order_by=year,asc&view=quick&view_count=100"
	DefaultNearEndPages = 3

	// NoDescription is stored when a title page has no description paragraph.
	NoDescription    = "לא נמצא תיאור"
	placeholderImage = "https://www.edb.co.il/static/images/edb_symbol.gif"
	premiereMarker   = "הפצה רשמית"

	highPriority   = 0.9
	normalPriority = 0.8
)

// Config holds EDB endpoints and listing parameters.
type Config struct {
	BaseURL      string
	SearchURL    string
	StartPage    int
	NearEndPages int
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.SearchURL == "" {
		c.SearchURL = DefaultSearchURL
	}
	if c.StartPage <= 0 {
		c.StartPage = 1
	}
	if c.NearEndPages <= 0 {
		c.NearEndPages = DefaultNearEndPages
	}
	return c
}
