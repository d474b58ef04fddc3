package source

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/moviedb-crawler/internal/crawler"
)

func TestSplitKeywords(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"drama", "דרמה", "1999"}, SplitKeywords("drama, דרמה,,1999 "))
	assert.Empty(t, SplitKeywords(""))
}

func TestParseYear(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{raw: "1999", want: 1999, ok: true},
		{raw: "(2004)", want: 2004, ok: true},
		{raw: " (2004) ", want: 2004, ok: true},
		{raw: "", ok: false},
		{raw: "()", ok: false},
		{raw: "19x9", ok: false},
		{raw: "-1999", ok: false},
	}
	for _, tt := range tests {
		got, ok := ParseYear(tt.raw)
		require.Equal(t, tt.ok, ok, tt.raw)
		if tt.ok {
			require.Equal(t, tt.want, *got, tt.raw)
		} else {
			require.Nil(t, got, tt.raw)
		}
	}
}

func TestResolvePremiere(t *testing.T) {
	t.Parallel()

	site := crawler.Site{ID: "1", URL: "u"}
	exact := time.Date(2001, time.March, 12, 0, 0, 0, 0, time.UTC)
	year := 2001

	got, estimated := ResolvePremiere(zap.NewNop(), site, &exact, &year)
	require.Equal(t, exact, got)
	require.False(t, estimated)

	got, estimated = ResolvePremiere(zap.NewNop(), site, nil, &year)
	require.Equal(t, time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC), got)
	require.True(t, estimated)
}

func TestResolvePremiereFlagsMissingYear(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	got, estimated := ResolvePremiere(zap.New(core), crawler.Site{ID: "9"}, nil, nil)
	require.True(t, got.IsZero())
	require.True(t, estimated)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, DataQualityPremiereAndYearMissing, entries[0].ContextMap()["data_quality"])
}

type stubFetcher struct {
	resp crawler.FetchResponse
	err  error
}

func (s stubFetcher) Fetch(context.Context, crawler.FetchRequest) (crawler.FetchResponse, error) {
	return s.resp, s.err
}

func TestFetchDocument(t *testing.T) {
	t.Parallel()

	doc, err := FetchDocument(context.Background(), stubFetcher{resp: crawler.FetchResponse{
		StatusCode: http.StatusOK,
		Body:       []byte("<p>hi</p>"),
	}}, "u")
	require.NoError(t, err)
	text, ok := doc.FindText("p")
	require.True(t, ok)
	require.Equal(t, "hi", text)

	_, err = FetchDocument(context.Background(), stubFetcher{resp: crawler.FetchResponse{StatusCode: http.StatusNotFound}}, "u")
	var statusErr *crawler.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	boom := errors.New("boom")
	_, err = FetchDocument(context.Background(), stubFetcher{err: boom}, "u")
	require.ErrorIs(t, err, boom)
}
