package fetcher

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newFilingTestFetcher(h http.HandlerFunc) (*FilingSearchFetcher, func()) {
	srv := httptest.NewServer(h)
	f := NewFilingSearchFetcher(srv.URL, "test-key", "S-1")
	f.Backoff = time.Millisecond
	return f, srv.Close
}

func TestSearchFilings_WalksPages(t *testing.T) {
	var queries []filingQuery
	f, closeFn := newFilingTestFetcher(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "test-key" {
			t.Errorf("missing Authorization header")
		}
		var q filingQuery
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			t.Errorf("decode query: %v", err)
			return
		}
		queries = append(queries, q)

		// First page full, second page short.
		n := 2
		if q.From > 0 {
			n = 1
		}
		rows := make([]string, 0, n)
		for i := 0; i < n; i++ {
			rows = append(rows, fmt.Sprintf(`{"accessionNo":"%d-%d","formType":"S-1","tickers":"[\"ABC\"]"}`, q.From, i))
		}
		fmt.Fprintf(w, `{"data":[%s]}`, joinJSON(rows))
	})
	defer closeFn()
	f.BatchSize = 2

	filings, err := f.SearchFilings("2026-08-27", "2026-08-28")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(filings) != 3 {
		t.Fatalf("expected 3 filings across pages, got %d", len(filings))
	}
	if len(queries) != 2 || queries[0].From != 0 || queries[1].From != 2 {
		t.Errorf("pagination offsets wrong: %+v", queries)
	}
	if want := "filedAt:[2026-08-27 TO 2026-08-28] AND formType:S-1"; queries[0].Query != want {
		t.Errorf("query mismatch:\n got %q\nwant %q", queries[0].Query, want)
	}
	if filings[0].TickersRaw != `["ABC"]` {
		t.Errorf("stringified tickers must unwrap, got %q", filings[0].TickersRaw)
	}
}

func joinJSON(rows []string) string {
	out := ""
	for i, r := range rows {
		if i > 0 {
			out += ","
		}
		out += r
	}
	return out
}

func TestSearchFilings_EmptyFirstPage(t *testing.T) {
	f, closeFn := newFilingTestFetcher(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})
	defer closeFn()

	filings, err := f.SearchFilings("2026-08-28", "2026-08-28")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(filings) != 0 {
		t.Errorf("expected no filings, got %d", len(filings))
	}
}

func TestSearchFilings_RetriesRateLimit(t *testing.T) {
	calls := 0
	f, closeFn := newFilingTestFetcher(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	})
	defer closeFn()

	if _, err := f.SearchFilings("2026-08-28", "2026-08-28"); err != nil {
		t.Fatalf("expected recovery within 3 attempts: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestSearchFilings_GivesUpOnClientError(t *testing.T) {
	calls := 0
	f, closeFn := newFilingTestFetcher(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer closeFn()

	if _, err := f.SearchFilings("2026-08-28", "2026-08-28"); err == nil {
		t.Fatal("expected error on 401")
	}
	if calls != 1 {
		t.Errorf("401 must not retry, got %d calls", calls)
	}
}

func TestRawToString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"json string", `"[{\"ticker\": \"ABC\"}]"`, `[{"ticker": "ABC"}]`},
		{"actual array", `[{"ticker": "ABC"}]`, `[{"ticker": "ABC"}]`},
		{"empty", ``, ``},
		// Unmarshal leaves the target string untouched on JSON null.
		{"null", `null`, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rawToString(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("rawToString(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
