// Package seret crawls Seret: movie pages are discovered through the site's
// XML sitemap and extracted from their schema.org microdata.
package seret

// Name is the source tag stored with every Seret record and cache entry.
const Name = "seret"

// Site defaults.
const (
	DefaultSitemapURL  = "https://www.seret.co.il/Sitemapsite.xml"
	DefaultMoviePrefix = "https://www.seret.co.il/movies/s_movies.asp?MID="
	DefaultArtifactDir = "sitemaps"
)

// Config holds Seret endpoints.
type Config struct {
	SitemapURL  string
	MoviePrefix string
	// ArtifactDir is the BlobStore prefix for raw sitemap copies.
	ArtifactDir string
}

func (c Config) withDefaults() Config {
	if c.SitemapURL == "" {
		c.SitemapURL = DefaultSitemapURL
	}
	if c.MoviePrefix == "" {
		c.MoviePrefix = DefaultMoviePrefix
	}
	if c.ArtifactDir == "" {
		c.ArtifactDir = DefaultArtifactDir
	}
	return c
}
