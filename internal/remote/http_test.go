package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestHTTPUpsert verifies method, path, auth header and body.
func TestHTTPUpsert(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = buf
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewHTTPService(HTTPConfig{BaseURL: server.URL, Token: "tok-1"})
	err := svc.Upsert(context.Background(), "animals", "A-1", json.RawMessage(`{"name":"Bella"}`))
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("method = %s, want PUT", gotMethod)
	}
	if gotPath != "/api/animals/A-1" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("auth = %q", gotAuth)
	}
	if string(gotBody) != `{"name":"Bella"}` {
		t.Errorf("body = %s", gotBody)
	}
}

// TestHTTPCreateReturnsID verifies the assigned id is surfaced.
func TestHTTPCreateReturnsID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"srv-42"}`))
	}))
	defer server.Close()

	svc := NewHTTPService(HTTPConfig{BaseURL: server.URL})
	id, err := svc.Create(context.Background(), "animals", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id != "srv-42" {
		t.Errorf("id = %q", id)
	}
}

// TestHTTPCreateMissingID verifies a 2xx without an id is rejected.
func TestHTTPCreateMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	svc := NewHTTPService(HTTPConfig{BaseURL: server.URL})
	_, err := svc.Create(context.Background(), "animals", json.RawMessage(`{}`))
	if !IsRejected(err) {
		t.Errorf("err = %v, want rejected", err)
	}
}

// TestHTTPRejectedClassification verifies 4xx/5xx are rejected-class.
func TestHTTPRejectedClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "validation failed", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	svc := NewHTTPService(HTTPConfig{BaseURL: server.URL})
	err := svc.Upsert(context.Background(), "animals", "A-1", json.RawMessage(`{}`))

	if !IsRejected(err) {
		t.Fatalf("err = %v, want rejected", err)
	}
	if IsNetwork(err) {
		t.Error("rejected error also classified as network")
	}
}

// TestHTTPNetworkClassification verifies transport failures are
// network-class.
func TestHTTPNetworkClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening anymore

	svc := NewHTTPService(HTTPConfig{BaseURL: server.URL})
	err := svc.Delete(context.Background(), "animals", "A-1")

	if !IsNetwork(err) {
		t.Fatalf("err = %v, want network", err)
	}
}

// TestHTTPFetch verifies GET and body passthrough.
func TestHTTPFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/lookups" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"breeds":["holstein"]}`))
	}))
	defer server.Close()

	svc := NewHTTPService(HTTPConfig{BaseURL: server.URL})
	body, err := svc.Fetch(context.Background(), "lookups")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(body) != `{"breeds":["holstein"]}` {
		t.Errorf("body = %s", body)
	}
}
