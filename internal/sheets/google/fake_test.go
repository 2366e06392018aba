package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const testSpreadsheet = "sid"

// fakeSheets serves the subset of the Values API the client uses. Each tab
// keeps its header in row 1.
type fakeSheets struct {
	mu   sync.Mutex
	tabs map[string][][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := "/v4/spreadsheets/" + testSpreadsheet + "/values/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	rng := strings.TrimPrefix(r.URL.Path, prefix)

	switch r.Method {
	case http.MethodGet:
		sheet, cells, _ := strings.Cut(rng, "!")
		rows := f.tabs[sheet]
		if strings.HasPrefix(cells, "A2") && len(rows) > 0 {
			rows = rows[1:]
		}
		writeJSON(w, map[string]any{"range": rng, "values": rows})

	case http.MethodPost:
		sheet, _, _ := strings.Cut(strings.TrimSuffix(rng, ":append"), "!")
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.tabs[sheet] = append(f.tabs[sheet], vr.Values...)
		n := len(f.tabs[sheet])
		writeJSON(w, map[string]any{
			"spreadsheetId": testSpreadsheet,
			"updates":       map[string]any{"updatedRange": fmt.Sprintf("%s!A%d:F%d", sheet, n, n)},
		})

	case http.MethodPut:
		sheet, cell, _ := strings.Cut(rng, "!")
		col := int(cell[0] - 'A')
		row, err := strconv.Atoi(cell[1:])
		if err != nil || row < 1 || row > len(f.tabs[sheet]) {
			http.Error(w, "bad cell", http.StatusBadRequest)
			return
		}
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cur := f.tabs[sheet][row-1]
		for len(cur) <= col {
			cur = append(cur, "")
		}
		cur[col] = vr.Values[0][0]
		f.tabs[sheet][row-1] = cur
		writeJSON(w, map[string]any{"updatedRange": rng})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, tabs map[string][][]any) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{tabs: tabs}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return New(svc, Options{
		SpreadsheetID:     testSpreadsheet,
		TransactionsSheet: "Transactions",
		BudgetsSheet:      "Budgets",
		GoalsSheet:        "Goals",
		TaxonomySheet:     "Taxonomy",
		RemindersSheet:    "Reminders",
	}, nil), fake
}
