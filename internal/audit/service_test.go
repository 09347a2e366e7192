package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	rows       []TimelineRow
	gotOffset  int
	gotLimit   int
	gotFilters TimelineFilters
}

func (f *fakeRepo) TimelineWindow(_ context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	f.gotFilters = filters
	f.gotOffset = offset
	f.gotLimit = limit
	if offset >= len(f.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return f.rows[offset:end], nil
}

func makeRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = TimelineRow{At: base.Add(-time.Duration(i) * time.Minute), Action: "inventory:add", Entity: "inventory_record", EntityID: "1"}
	}
	return rows
}

func TestTimelineDefaultsAndHasNext(t *testing.T) {
	repo := &fakeRepo{rows: makeRows(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 20)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Equal(t, 21, repo.gotLimit, "fetches one extra row to detect next page")
}

func TestTimelineSecondPage(t *testing.T) {
	repo := &fakeRepo{rows: makeRows(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 5)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
	require.Equal(t, 20, repo.gotOffset)
}

func TestTimelineCapsPageSize(t *testing.T) {
	repo := &fakeRepo{rows: makeRows(80)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, result.Rows, 50)
}

func TestExportDefaultsFromWindow(t *testing.T) {
	repo := &fakeRepo{rows: makeRows(3)}
	svc := NewService(repo)

	rows, err := svc.Export(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.False(t, repo.gotFilters.From.IsZero(), "export narrows an open range to the last week")
}
