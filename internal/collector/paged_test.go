package collector

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

// fakeSource 按 total 生成结果，记录每次请求的 offset
type fakeSource struct {
	total   int
	offsets []int
	// failAt 为非零时，该 offset 返回 failErr
	failAt  int
	failErr error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchPage(_ context.Context, q SearchQuery, offset int) (ResultPage, error) {
	f.offsets = append(f.offsets, offset)
	if f.failAt != 0 && offset == f.failAt {
		return ResultPage{}, f.failErr
	}
	page := ResultPage{TotalAvailable: f.total, StartOffset: offset}
	for i := offset; i < offset+q.PageSize && i <= f.total; i++ {
		page.Items = append(page.Items, Record{
			"title": fmt.Sprintf("<b>news</b> %d", i),
			"link":  fmt.Sprintf("https://example.com/%d", i),
		})
	}
	return page, nil
}

func newTestCollector(src PageSource) *PagedCollector {
	c := NewPagedCollector(src, &Cleaner{Fields: NewsFields})
	c.sleep = func(time.Duration) {}
	return c
}

func mustQuery(t *testing.T, pageSize, maxPages int) SearchQuery {
	t.Helper()
	q, err := NewSearchQuery("fintech", pageSize, maxPages, SortDate)
	if err != nil {
		t.Fatalf("NewSearchQuery: %v", err)
	}
	return q
}

func TestCollectEmptyResultSingleRequest(t *testing.T) {
	src := &fakeSource{total: 0}
	res, err := newTestCollector(src).Collect(context.Background(), mustQuery(t, 100, 11))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.Requests != 1 || len(src.offsets) != 1 {
		t.Fatalf("expected exactly one request, got %d", len(src.offsets))
	}
	if len(res.Records) != 0 || res.Termination != TerminationEmptyResult {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCollectRequestCount(t *testing.T) {
	cases := []struct {
		total, pageSize, maxPages int
		want                      int
	}{
		{total: 1, pageSize: 100, maxPages: 11, want: 1},
		{total: 100, pageSize: 100, maxPages: 11, want: 1},
		{total: 101, pageSize: 100, maxPages: 11, want: 2},
		{total: 250, pageSize: 10, maxPages: 3, want: 3},
		{total: 35, pageSize: 10, maxPages: 11, want: 4},
	}
	for _, tc := range cases {
		src := &fakeSource{total: tc.total}
		res, err := newTestCollector(src).Collect(context.Background(), mustQuery(t, tc.pageSize, tc.maxPages))
		if err != nil {
			t.Fatalf("Collect(%+v): %v", tc, err)
		}
		if res.Requests != tc.want || len(src.offsets) != tc.want {
			t.Fatalf("Collect(%+v): requests=%d want %d", tc, res.Requests, tc.want)
		}
	}
}

func TestCollect950Items(t *testing.T) {
	src := &fakeSource{total: 950}
	res, err := newTestCollector(src).Collect(context.Background(), mustQuery(t, 100, 11))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	want := []int{1, 101, 201, 301, 401, 501, 601, 701, 801, 901}
	if !reflect.DeepEqual(src.offsets, want) {
		t.Fatalf("offsets = %v, want %v", src.offsets, want)
	}
	if len(res.Records) != 950 {
		t.Fatalf("records = %d, want 950", len(res.Records))
	}
	if res.Records[0]["title"] != "news 1" {
		t.Fatalf("records must be cleaned and in order, got %q", res.Records[0]["title"])
	}
	if res.Termination != TerminationCompleted || res.Partial {
		t.Fatalf("unexpected termination %s partial=%v", res.Termination, res.Partial)
	}
	if got := Offsets(950, 100, 11, DefaultOffsetCeiling); !reflect.DeepEqual(got, want) {
		t.Fatalf("Offsets = %v, want %v", got, want)
	}
}

func TestCollectStopsAtOffsetCeiling(t *testing.T) {
	src := &fakeSource{total: 50000}
	res, err := newTestCollector(src).Collect(context.Background(), mustQuery(t, 100, 11))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, o := range src.offsets {
		if o > DefaultOffsetCeiling {
			t.Fatalf("requested offset %d beyond ceiling", o)
		}
	}
	if res.Requests != 10 {
		t.Fatalf("requests = %d, want 10", res.Requests)
	}
	if res.Termination != TerminationExhausted {
		t.Fatalf("termination = %s, want %s", res.Termination, TerminationExhausted)
	}
	if len(res.Records) != 1000 {
		t.Fatalf("records = %d, want 1000", len(res.Records))
	}
}

func TestCollectRequestsExactlyOffsets(t *testing.T) {
	cases := []struct{ total, pageSize, maxPages, ceiling int }{
		{950, 100, 11, DefaultOffsetCeiling},
		{50000, 100, 11, DefaultOffsetCeiling},
		{50000, 100, 11, 250},
		{35, 10, 11, DefaultOffsetCeiling},
		{500, 10, 3, DefaultOffsetCeiling},
	}
	for _, tc := range cases {
		src := &fakeSource{total: tc.total}
		c := newTestCollector(src)
		c.OffsetCeiling = tc.ceiling
		if _, err := c.Collect(context.Background(), mustQuery(t, tc.pageSize, tc.maxPages)); err != nil {
			t.Fatalf("Collect(%+v): %v", tc, err)
		}
		want := Offsets(tc.total, tc.pageSize, tc.maxPages, tc.ceiling)
		if !reflect.DeepEqual(src.offsets, want) {
			t.Fatalf("Collect(%+v) requested %v, Offsets = %v", tc, src.offsets, want)
		}
	}
}

func TestCollectPageCap(t *testing.T) {
	src := &fakeSource{total: 500}
	res, err := newTestCollector(src).Collect(context.Background(), mustQuery(t, 10, 3))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.Termination != TerminationPageCap || len(res.Records) != 30 {
		t.Fatalf("unexpected result: termination=%s records=%d", res.Termination, len(res.Records))
	}
}

func TestCollectMidPageFailureKeepsPartial(t *testing.T) {
	boom := errors.New("connection reset")
	src := &fakeSource{total: 500, failAt: 201, failErr: boom}
	res, err := newTestCollector(src).Collect(context.Background(), mustQuery(t, 100, 11))
	if err != nil {
		t.Fatalf("Collect should not fail after first page: %v", err)
	}
	if !res.Partial || !errors.Is(res.Err, boom) {
		t.Fatalf("expected partial result carrying the error, got %+v", res)
	}
	if len(res.Records) != 200 || res.Requests != 3 {
		t.Fatalf("records=%d requests=%d", len(res.Records), res.Requests)
	}
	if res.Termination != TerminationAborted {
		t.Fatalf("termination = %s", res.Termination)
	}
}

func TestCollectFirstPageError(t *testing.T) {
	src := &fakeSource{total: 500, failAt: 1, failErr: &UpstreamError{Source: "fake", StatusCode: 401, Body: "unauthorized"}}
	_, err := newTestCollector(src).Collect(context.Background(), mustQuery(t, 100, 11))
	if err == nil {
		t.Fatalf("expected error")
	}
	ue, ok := IsUpstream(err)
	if !ok || ue.StatusCode != 401 {
		t.Fatalf("expected upstream 401 in chain, got %v", err)
	}
}

func TestCollectSleepsBetweenPages(t *testing.T) {
	src := &fakeSource{total: 300}
	c := newTestCollector(src)
	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	if _, err := c.Collect(context.Background(), mustQuery(t, 100, 11)); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(slept) != 2 || slept[0] != DefaultPageInterval {
		t.Fatalf("slept = %v", slept)
	}
}

func TestNewSearchQueryValidation(t *testing.T) {
	bad := []struct {
		keyword            string
		pageSize, maxPages int
		sort               SortOrder
	}{
		{"", 100, 1, SortDate},
		{"  ", 100, 1, SortDate},
		{"x", 0, 1, SortDate},
		{"x", 101, 1, SortDate},
		{"x", 100, 0, SortDate},
		{"x", 100, 1, "random"},
	}
	for _, b := range bad {
		if _, err := NewSearchQuery(b.keyword, b.pageSize, b.maxPages, b.sort); !errors.Is(err, ErrInvalidQuery) {
			t.Fatalf("NewSearchQuery(%+v) err = %v", b, err)
		}
	}
	q, err := NewSearchQuery(" 핀테크 ", 100, 11, "")
	if err != nil || q.Keyword != "핀테크" || q.Sort != SortDate {
		t.Fatalf("unexpected query %+v err=%v", q, err)
	}
}

func TestColumnsOrder(t *testing.T) {
	recs := []Record{{"link": "l", "title": "t", "z": "1"}, {"a": "2"}}
	got := Columns(recs, "title", "link")
	want := []string{"title", "link", "a", "z"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Columns = %v, want %v", got, want)
	}
}
