package api

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/moviedb-crawler/internal/crawler"
)

func TestRunBoard_ObserveRunResetsProgress(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	board := NewRunBoard(func() time.Time { return at })
	board.ObserveSite("edb", crawler.OutcomeFailed, time.Second)
	board.ObserveRun(crawler.RunStats{Source: "edb", Failed: 1}, nil)

	st, ok := board.Status("edb")
	require.True(t, ok)
	require.Equal(t, StateSucceeded, st.State)
	require.Empty(t, st.Processed)
	require.Equal(t, 1, st.LastRun.Failed)
	require.Equal(t, at, *st.FinishedAt)
	require.Empty(t, st.LastError)
}

func TestRunBoard_FailureThenSuccessClearsError(t *testing.T) {
	t.Parallel()

	board := NewRunBoard(nil)
	board.ObserveRun(crawler.RunStats{Source: "seret"}, errors.New("sitemap down"))
	st, _ := board.Status("seret")
	require.Equal(t, StateFailed, st.State)

	board.ObserveRun(crawler.RunStats{Source: "seret", Recorded: 4}, nil)
	st, _ = board.Status("seret")
	require.Equal(t, StateSucceeded, st.State)
	require.Empty(t, st.LastError)
}

func TestRunBoard_StatusReturnsCopy(t *testing.T) {
	t.Parallel()

	board := NewRunBoard(nil)
	board.ObserveSite("seret", crawler.OutcomeRecorded, 0)

	st, _ := board.Status("seret")
	st.Processed["recorded"] = 99

	again, _ := board.Status("seret")
	require.Equal(t, 1, again.Processed["recorded"])
}

func TestRunBoard_ConcurrentObservers(t *testing.T) {
	t.Parallel()

	board := NewRunBoard(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			board.ObserveSite("edb", crawler.OutcomeRecorded, 0)
			_ = board.Statuses()
		}()
	}
	wg.Wait()

	st, ok := board.Status("edb")
	require.True(t, ok)
	require.Equal(t, 50, st.Processed["recorded"])
}

func TestRunBoard_SatisfiesRunObserver(t *testing.T) {
	t.Parallel()

	var _ crawler.RunObserver = NewRunBoard(nil)
}
