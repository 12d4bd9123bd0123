package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"watchlist-compare/models"
)

func TestExtractSpreadsheetID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"edit url", "https://docs.google.com/spreadsheets/d/abc123/edit", "abc123"},
		{"sharing url", "https://docs.google.com/spreadsheets/d/abc123/edit?usp=sharing", "abc123"},
		{"query only", "https://docs.google.com/spreadsheets/d/abc123?x=1", "abc123"},
		{"bare id", "abc123", "abc123"},
		{"unrelated url", "https://example.com/sheet", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractSpreadsheetID(tt.input))
		})
	}
}

func TestSanitizeSheetName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"alice vs bob", "alice vs bob"},
		{"a/b\\c?d*e[f]g'h", "a_b_c_d_e_f_g_h"},
		{"   ", "Sheet1"},
		{strings.Repeat("é", 120), strings.Repeat("é", 100)},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, sanitizeSheetName(tt.input))
	}
}

func TestFilmRows(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := filmRows([]models.Film{
		{Title: "Dune", Link: "https://letterboxd.com/film/dune/", Poster: "p.jpg"},
	}, []string{"alice", "bob"}, at)

	require.Len(t, rows, 3)
	assert.Equal(t, []interface{}{"Users", "alice, bob", "Compared at", "2024-05-01T12:00:00Z", "Common films", 1}, rows[0])
	assert.Equal(t, []interface{}{"#", "Title", "Link", "Poster"}, rows[1])
	assert.Equal(t, []interface{}{1, "Dune", "https://letterboxd.com/film/dune/", "p.jpg"}, rows[2])
}

func TestSheetNameFor(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, "alice vs bob 2024-05-01 12:30", SheetNameFor([]string{"alice", "bob"}, at))
}

func TestNewWriter_BadCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SHEETS_CREDENTIALS", "")
	_, err := NewWriter(context.Background(), "id", "", nil)
	assert.ErrorContains(t, err, "credentials not found")

	t.Setenv("GOOGLE_SHEETS_CREDENTIALS", `{"type":"authorized_user"}`)
	_, err = NewWriter(context.Background(), "id", "", nil)
	assert.ErrorContains(t, err, "service account")
}

func TestCreateSheetAndWriteFilms(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []string
		written  struct {
			Values [][]interface{} `json:"values"`
		}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, r.Method+" "+r.URL.Path)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":batchUpdate"):
			assert.Contains(t, string(body), `"title":"alice vs bob"`)
			_, _ = w.Write([]byte(`{"replies":[{"addSheet":{"properties":{"sheetId":42,"title":"alice vs bob"}}}]}`))
		case r.Method == http.MethodPut:
			require.NoError(t, json.Unmarshal(body, &written))
			_, _ = w.Write([]byte(`{"updatedRows":3}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	wr, err := newWriter(ctx, "sheet-id", nil, option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)

	name, gid, err := wr.CreateSheetAndWriteFilms(ctx, "alice vs bob", []models.Film{
		{Title: "Dune", Link: "https://letterboxd.com/film/dune/"},
	}, []string{"alice", "bob"})
	require.NoError(t, err)

	assert.Equal(t, "alice vs bob", name)
	assert.Equal(t, int64(42), gid)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/sheet-id/edit#gid=42", wr.SheetURL(gid))

	require.Len(t, requests, 2)
	assert.Contains(t, requests[0], "/v4/spreadsheets/sheet-id:batchUpdate")
	require.Len(t, written.Values, 3)
	assert.Equal(t, "Dune", written.Values[2][1])
}
