package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskradar/internal/apperr"
	"github.com/nhle/taskradar/internal/model"
)

const okResponse = `{
  "status": "OK",
  "results": [
    {
      "name": "Main Street Pharmacy",
      "vicinity": "12 Main St",
      "place_id": "ChIJ-1",
      "rating": 4.2,
      "opening_hours": {"open_now": true},
      "geometry": {"location": {"lat": 40.7130, "lng": -74.0055}}
    },
    {
      "name": "Night Drugs",
      "vicinity": "99 Broad St",
      "place_id": "ChIJ-2",
      "geometry": {"location": {"lat": 40.7150, "lng": -74.0100}}
    }
  ]
}`

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *url.URL) {
	t.Helper()

	captured := &url.URL{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = *r.URL
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestGoogleSearchParsesResults(t *testing.T) {
	srv, reqURL := newTestServer(t, http.StatusOK, okResponse)
	client := NewGoogleClient(srv.URL, "secret", 5*time.Second)

	got, err := client.Search(context.Background(), SearchRequest{
		Position: model.Position{Latitude: 40.7128, Longitude: -74.0060},
		RadiusM:  2000,
		Keyword:  "pharmacy",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, nearbySearchAPI, reqURL.Path)
	q := reqURL.Query()
	assert.Equal(t, "40.712800,-74.006000", q.Get("location"))
	assert.Equal(t, "2000", q.Get("radius"))
	assert.Equal(t, "pharmacy", q.Get("keyword"))
	assert.Equal(t, "secret", q.Get("key"))

	first := got[0]
	assert.Equal(t, "Main Street Pharmacy", first.Name)
	assert.Equal(t, "12 Main St", first.Address)
	assert.Equal(t, "ChIJ-1", first.PlaceID)
	assert.InDelta(t, 40.7130, first.Latitude, 1e-9)
	require.NotNil(t, first.Rating)
	assert.Equal(t, 4.2, *first.Rating)
	require.NotNil(t, first.OpenNow)
	assert.True(t, *first.OpenNow)

	assert.Nil(t, got[1].Rating)
	assert.Nil(t, got[1].OpenNow)
}

func TestGoogleSearchStatuses(t *testing.T) {
	tests := []struct {
		name     string
		httpCode int
		body     string
		wantKind apperr.Kind
		wantErr  bool
	}{
		{name: "zero results", httpCode: http.StatusOK, body: `{"status":"ZERO_RESULTS","results":[]}`},
		{name: "denied", httpCode: http.StatusOK, body: `{"status":"REQUEST_DENIED","error_message":"bad key"}`,
			wantErr: true, wantKind: apperr.KindConfigurationMissing},
		{name: "quota", httpCode: http.StatusOK, body: `{"status":"OVER_QUERY_LIMIT"}`,
			wantErr: true, wantKind: apperr.KindTransientIO},
		{name: "server error", httpCode: http.StatusBadGateway, body: `oops`,
			wantErr: true, wantKind: apperr.KindTransientIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.httpCode, tt.body)
			client := NewGoogleClient(srv.URL, "k", 5*time.Second)

			got, err := client.Search(context.Background(), SearchRequest{Keyword: "x", RadiusM: 10})
			if !tt.wantErr {
				require.NoError(t, err)
				assert.NotNil(t, got)
				assert.Empty(t, got)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
		})
	}
}

func TestDisabledSearcher(t *testing.T) {
	_, err := Disabled{}.Search(context.Background(), SearchRequest{})
	assert.True(t, apperr.Is(err, apperr.KindConfigurationMissing))
}
