package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// fakeSheetsAPI serves the handful of Sheets v4 endpoints the client uses.
type fakeSheetsAPI struct {
	mu      sync.Mutex
	calls   []string
	queries map[string]url.Values
	bodies  map[string]string
	tabs    []string
	values  map[string][][]interface{}
	missing map[string]bool
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1")
	call := r.Method + " " + path
	f.calls = append(f.calls, call)
	f.queries[call] = r.URL.Query()
	body, _ := io.ReadAll(r.Body)
	f.bodies[call] = string(body)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && path == "":
		var sheets []map[string]interface{}
		for _, t := range f.tabs {
			sheets = append(sheets, map[string]interface{}{"properties": map[string]string{"title": t}})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"sheets": sheets})
	case r.Method == http.MethodPost && path == ":batchUpdate":
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/values/"):
		rng := strings.TrimPrefix(path, "/values/")
		if f.missing[rng] {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Unable to parse range"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"range": rng, "values": f.values[rng]})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.HasPrefix(path, "/values/"):
		_, _ = w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
	}
}

func newFakeClient(t *testing.T, api *fakeSheetsAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := NewClientWithOptions(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return c
}

func newFakeAPI() *fakeSheetsAPI {
	return &fakeSheetsAPI{
		queries: map[string]url.Values{},
		bodies:  map[string]string{},
		values:  map[string][][]interface{}{},
		missing: map[string]bool{},
	}
}

func TestClientListTabs(t *testing.T) {
	api := newFakeAPI()
	api.tabs = []string{"DailyTop", "CategoryTop"}
	c := newFakeClient(t, api)

	tabs, err := c.ListTabs(context.Background(), "sheet-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"DailyTop", "CategoryTop"}, tabs)
}

func TestClientReadMissingTabIsNoData(t *testing.T) {
	api := newFakeAPI()
	api.missing["'New Tab'!A1:Z"] = true
	c := newFakeClient(t, api)

	_, err := c.ReadRange(context.Background(), "sheet-1", "'New Tab'!A1:Z")
	require.Error(t, err)
	assert.True(t, IsNoData(err))
}

func TestClientRoundTrip(t *testing.T) {
	api := newFakeAPI()
	api.values["DailyTop"] = [][]interface{}{{"Rank", "Name", "Price"}, {"1", "Kettle", 1234.5}}
	c := newFakeClient(t, api)
	ctx := context.Background()

	got, err := c.ReadRange(ctx, "sheet-1", "DailyTop")
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"Rank", "Name", "Price"}, {"1", "Kettle", 1234.5}}, got)

	read := api.queries["GET /values/DailyTop"]
	assert.Equal(t, "UNFORMATTED_VALUE", read.Get("valueRenderOption"))
	assert.Equal(t, "FORMATTED_STRING", read.Get("dateTimeRenderOption"))

	require.NoError(t, c.CreateTab(ctx, "sheet-1", "100629"))
	require.NoError(t, c.ClearRange(ctx, "sheet-1", "DailyTop"))
	require.NoError(t, c.WriteRange(ctx, "sheet-1", "DailyTop!A1", [][]interface{}{{"Rank"}, {"1"}}))

	assert.Equal(t, []string{
		"GET /values/DailyTop",
		"POST :batchUpdate",
		"POST /values/DailyTop:clear",
		"PUT /values/DailyTop!A1",
	}, api.calls)
	assert.Contains(t, api.bodies["POST :batchUpdate"], `"title":"100629"`)
	assert.Contains(t, api.bodies["PUT /values/DailyTop!A1"], `"values":[["Rank"],["1"]]`)
	assert.Equal(t, "RAW", api.queries["PUT /values/DailyTop!A1"].Get("valueInputOption"))
}

func TestClientErrorsAreWrapped(t *testing.T) {
	c := newFakeClient(t, newFakeAPI())
	_, err := c.ReadRange(context.Background(), "other-sheet", "DailyTop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read range")
	assert.False(t, IsNoData(err))
}
