package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aristath/bazaar-tracker/internal/config"
	"github.com/aristath/bazaar-tracker/internal/di"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.Backup.Dir = filepath.Join(cfg.DataDir, "backups")
	cfg.Market.Watchlist = nil

	container, _, err := di.Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	srv := New(Config{Log: zerolog.Nop(), Config: cfg, Container: container, DevMode: true})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, body string, out interface{}) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func openHolding(t *testing.T, base string) {
	t.Helper()
	code := doJSON(t, http.MethodPost, base+"/api/ledger/holdings",
		`{"item":"BOOSTER_COOKIE","quantity":2,"buy_price":100}`, nil)
	require.Equal(t, http.StatusCreated, code)
}

func TestHealth(t *testing.T) {
	ts := setupServer(t)

	var body map[string]interface{}
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/health", "", &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestLedgerRoutesMounted(t *testing.T) {
	ts := setupServer(t)
	openHolding(t, ts.URL)

	var body struct {
		Count int `json:"count"`
	}
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/ledger/holdings", "", &body))
	assert.Equal(t, 1, body.Count)
}

func TestSystemEndpoints(t *testing.T) {
	ts := setupServer(t)

	var status SystemStatusResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/system/status", "", &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Len(t, status.Databases, 2)
	assert.Equal(t, []string{"cache_cleanup", "ledger_backup", "price_sync", "wal_checkpoint"}, status.Jobs)

	var stats struct {
		Databases []DatabaseStatus `json:"databases"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/system/database/stats", "", &stats))
	require.Len(t, stats.Databases, 2)
	assert.NotNil(t, stats.Databases[0].Stats)

	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/api/system/jobs/wal_checkpoint/run", "", nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, ts.URL+"/api/system/jobs/nope/run", "", nil))
}

func TestBackupEndpoints(t *testing.T) {
	ts := setupServer(t)
	openHolding(t, ts.URL)

	var result struct {
		Path     string `json:"path"`
		Uploaded bool   `json:"uploaded"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/api/system/backup", "", &result))
	assert.FileExists(t, result.Path)
	assert.False(t, result.Uploaded)

	var list struct {
		Count int `json:"count"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/system/backups", "", &list))
	assert.Equal(t, 1, list.Count)
}

func TestEventsWebSocket(t *testing.T) {
	ts := setupServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/events/ws?types=holding_opened", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var msg streamMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "connected", msg.Type)

	openHolding(t, ts.URL)

	var event struct {
		Type   string                 `json:"type"`
		Module string                 `json:"module"`
		Data   map[string]interface{} `json:"data"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &event))
	assert.Equal(t, "HOLDING_OPENED", event.Type)
	assert.Equal(t, "BOOSTER_COOKIE", event.Data["item"])
}

func TestEventsSSE(t *testing.T) {
	ts := setupServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readData := func() streamMessage {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				var msg streamMessage
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg))
				return msg
			}
		}
	}

	assert.Equal(t, "connected", readData().Type)
	openHolding(t, ts.URL)
	assert.Equal(t, "HOLDING_OPENED", readData().Type)
}

func TestParseEventTypes(t *testing.T) {
	assert.Nil(t, parseEventTypes(""))
	types := parseEventTypes("holding_opened, PRICES_SYNCED,")
	require.Len(t, types, 2)
	assert.Equal(t, "HOLDING_OPENED", string(types[0]))
	assert.Equal(t, "PRICES_SYNCED", string(types[1]))
}
