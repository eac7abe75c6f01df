package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/ghettodevelopers/Supasoka-backend-sub002/core"
)

func TestRESTAdapter_ResponseLimitReturnsRichError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 4

	_, err := adapter.Do(context.Background(), core.TransportRequest{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatalf("expected response body limit error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", rich.Category)
	}
	if core.IsUnreachable(err) {
		t.Fatalf("expected oversized body to not count as unreachable")
	}
	if rich.Code != http.StatusBadGateway {
		t.Fatalf("expected %d code, got %d", http.StatusBadGateway, rich.Code)
	}
}

func TestRESTAdapter_NilReturnsRichError(t *testing.T) {
	var adapter *RESTAdapter
	_, err := adapter.Do(context.Background(), core.TransportRequest{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ClientErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.ClientErrorInternal, rich.TextCode)
	}
}

func TestRESTAdapter_RelativeURLIsBadInput(t *testing.T) {
	adapter := NewRESTAdapter(nil)
	_, err := adapter.Do(context.Background(), core.TransportRequest{URL: "/users"})
	if core.Classify(err) == core.KindUnreachable {
		t.Fatalf("expected relative url to be rejected before dialing")
	}
}

func TestRESTAdapter_TimeoutIsUnreachable(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	adapter := NewRESTAdapter(server.Client())
	_, err := adapter.Do(context.Background(), core.TransportRequest{
		URL:     server.URL,
		Timeout: 20 * time.Millisecond,
	})
	if !core.IsUnreachable(err) {
		t.Fatalf("expected timeout to be unreachable, got %v", err)
	}
}

func TestRESTAdapter_DefaultHeadersAndQuery(t *testing.T) {
	var gotAuth, gotQuery, gotCustom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCustom = r.Header.Get("X-Custom")
		gotQuery = r.URL.Query().Get("page")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.SetDefaultHeader("authorization", "Bearer abc")
	res, err := adapter.Do(context.Background(), core.TransportRequest{
		URL:     server.URL,
		Query:   map[string]string{"page": "2"},
		Headers: map[string]string{"X-Custom": "yes"},
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.StatusCode)
	}
	if gotAuth != "Bearer abc" || gotCustom != "yes" || gotQuery != "2" {
		t.Fatalf("unexpected request shape auth=%q custom=%q page=%q", gotAuth, gotCustom, gotQuery)
	}

	adapter.RemoveDefaultHeader("Authorization")
	if adapter.DefaultHeader("Authorization") != "" {
		t.Fatalf("expected authorization default header removed")
	}
}
