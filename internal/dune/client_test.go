package dune

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newDuneServer fakes the Dune API: one execute endpoint and a status
// endpoint that reports pending for the first pendingPolls calls.
func newDuneServer(t *testing.T, finalState string, pendingPolls int) *httptest.Server {
	t.Helper()
	polls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("POST /query/{id}/execute", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Dune-Api-Key") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			QueryParameters map[string]string `json:"query_parameters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"execution_id": "01HXEXEC"})
	})
	mux.HandleFunc("GET /execution/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		state := finalState
		if polls < pendingPolls {
			state = "QUERY_STATE_PENDING"
			polls++
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"state": state})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExecuteAndWait(t *testing.T) {
	srv := newDuneServer(t, "QUERY_STATE_COMPLETED", 2)
	client := NewClient("test-key", srv.URL)

	execID, err := client.Execute(context.Background(), "3567831", map[string]string{
		"start_date": "2025-04-01",
		"end_date":   "2025-04-30",
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if execID != "01HXEXEC" {
		t.Errorf("execution ID = %q", execID)
	}

	if err := client.Wait(context.Background(), execID, 5*time.Second, time.Millisecond); err != nil {
		t.Errorf("Wait returned error: %v", err)
	}
}

func TestExecuteRequiresAPIKey(t *testing.T) {
	srv := newDuneServer(t, "QUERY_STATE_COMPLETED", 0)
	client := NewClient("", srv.URL)

	if _, err := client.Execute(context.Background(), "1", nil); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestWaitFailedExecution(t *testing.T) {
	srv := newDuneServer(t, "QUERY_STATE_FAILED", 0)
	client := NewClient("test-key", srv.URL)

	err := client.Wait(context.Background(), "01HXEXEC", 5*time.Second, time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "failed") {
		t.Errorf("expected failure error, got %v", err)
	}
}

func TestWaitTimeout(t *testing.T) {
	srv := newDuneServer(t, "QUERY_STATE_COMPLETED", 1000000)
	client := NewClient("test-key", srv.URL)

	err := client.Wait(context.Background(), "01HXEXEC", 20*time.Millisecond, time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error, got %v", err)
	}
}

func TestResultCSVURL(t *testing.T) {
	client := NewClient("k", "https://api.dune.com/api/v1")
	want := "https://api.dune.com/api/v1/execution/abc/results/csv"
	if got := client.ResultCSVURL("abc"); got != want {
		t.Errorf("ResultCSVURL = %q, want %q", got, want)
	}
}

func TestNormalizeState(t *testing.T) {
	testCases := []struct {
		raw  string
		want executionState
	}{
		{"QUERY_STATE_COMPLETED", stateCompleted},
		{"completed", stateCompleted},
		{"done", stateCompleted},
		{"QUERY_STATE_FAILED", stateFailed},
		{"cancelled", stateFailed},
		{"QUERY_STATE_PENDING", statePending},
		{"QUERY_STATE_EXECUTING", statePending},
		{"", statePending},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("state %q", tc.raw), func(t *testing.T) {
			if got := normalizeState(tc.raw); got != tc.want {
				t.Errorf("normalizeState(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}
