package provider

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticFetchFiltersCommentsAndBlanks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("9.9.9.9\n# comment\n\n1.2.3.4\n"))
	}))
	defer srv.Close()

	s := &Static{}
	ips, err := s.Fetch(map[string]string{"url": srv.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := []string{"9.9.9.9", "1.2.3.4"}
	if len(ips) != len(want) {
		t.Fatalf("got %v, want %v", ips, want)
	}
	for i, ip := range want {
		if ips[i] != ip {
			t.Errorf("ips[%d] = %s, want %s", i, ips[i], ip)
		}
	}
}

func TestStaticFetchRequiresURL(t *testing.T) {
	s := &Static{}
	if _, err := s.Fetch(map[string]string{}); err == nil {
		t.Errorf("expected an error when url is missing")
	}
}
