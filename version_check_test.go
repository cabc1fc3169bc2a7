package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchLatestRelease(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
		wantEr bool
	}{
		{"stable release", http.StatusOK, `{"tag_name":"v1.2.3"}`, "1.2.3", false},
		{"prerelease skipped", http.StatusOK, `{"tag_name":"v2.0.0","prerelease":true}`, "", false},
		{"draft skipped", http.StatusOK, `{"tag_name":"v2.0.0","draft":true}`, "", false},
		{"no releases", http.StatusNotFound, ``, "", false},
		{"rate limited", http.StatusForbidden, ``, "", true},
		{"server error", http.StatusInternalServerError, ``, "", true},
		{"garbage body", http.StatusOK, `not json`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := fetchLatestRelease(srv.URL)
			if (err != nil) != tt.wantEr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantEr)
			}
			if got != tt.want {
				t.Errorf("latest = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsNewerVersion(t *testing.T) {
	tests := []struct {
		latest  string
		current string
		want    bool
	}{
		{"1.2.3", "1.2.2", true},
		{"1.2.3", "1.2.3", false},
		{"1.2.3", "1.3.0", false},
		{"2.0.0", "1.9.9", true},
		{"v1.1.0", "1.0.0", true},
	}

	for _, tt := range tests {
		if got := isNewerVersion(tt.latest, tt.current); got != tt.want {
			t.Errorf("isNewerVersion(%q, %q) = %v, want %v", tt.latest, tt.current, got, tt.want)
		}
	}
}
