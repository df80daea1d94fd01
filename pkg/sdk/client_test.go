package sdk

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOperationDecodesResultOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/servers/alpha/graceful-stop" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(OperationResult{ID: "op-1", Status: "rejected", Error: "server endpoint unavailable"})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).GracefulStopServer("alpha")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Message != "server endpoint unavailable" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if res == nil || res.Status != "rejected" || res.ID != "op-1" {
		t.Errorf("result = %+v", res)
	}
}

func TestExecSendsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ExecRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(OperationResult{Status: "completed", Output: "ran " + req.Command})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL+"/").Exec("alpha", "Save")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.Output != "ran Save" {
		t.Errorf("output = %q", res.Output)
	}
}

func TestPlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ListOperations("alpha", 3)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Invalid limit" {
		t.Errorf("err = %v", err)
	}
}

func TestWebSocketURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:23008":  "ws://localhost:23008/ws/servers/alpha/events",
		"https://warden.example":  "wss://warden.example/ws/servers/alpha/events",
		"http://localhost:23008/":  "ws://localhost:23008/ws/servers/alpha/events",
	}
	for base, want := range cases {
		got, err := NewClient(base).EventsURL("alpha")
		if err != nil || got != want {
			t.Errorf("EventsURL(%s) = %q, %v; want %q", base, got, err, want)
		}
	}
}
