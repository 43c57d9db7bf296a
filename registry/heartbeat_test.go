package registry

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"TeethAnnotationServer/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func regServerFor(t *testing.T, url string) RegServerConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(url[len("http://"):])
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return RegServerConfig{Addr: host, Port: port}
}

func TestHeartbeat_SendOnce(t *testing.T) {
	var got RegisterRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/register", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(RegisterResponse{Id: got.Id, Success: true})
	}))
	defer server.Close()

	hb := NewHeartbeat(regServerFor(t, server.URL), "10.0.0.5", 8111, "teeth_annotation_sl_techno/1")
	require.NoError(t, hb.SendOnce(context.Background()))
	assert.Equal(t, hb.ID(), got.Id)
	assert.Equal(t, "10.0.0.5", got.IP)
	assert.Equal(t, 8111, got.Port)
	assert.Equal(t, "teeth_annotation_sl_techno/1", got.ModelID)
}

func TestHeartbeat_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer server.Close()

	hb := NewHeartbeat(regServerFor(t, server.URL), "10.0.0.5", 8111, "m/1")
	assert.Error(t, hb.SendOnce(context.Background()))
}

func TestHeartbeat_RunStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	hb := NewHeartbeat(regServerFor(t, server.URL), "10.0.0.5", 8111, "m/1")
	hb.interval = 20 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go hb.Run(ctx, &wg)

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 10*time.Millisecond)
	cancel()
	wg.Wait()
}

func TestHeartbeat_FailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger.Use(zap.New(core))
	t.Cleanup(func() { logger.Use(zap.NewNop()) })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	hb := NewHeartbeat(regServerFor(t, server.URL), "10.0.0.5", 8111, "m/1")
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go hb.Run(ctx, &wg)
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("heartbeat failed").Len() >= 1
	}, time.Second, 10*time.Millisecond)
	cancel()
	wg.Wait()

	entry := logs.FilterMessage("heartbeat failed").All()[0]
	assert.Equal(t, hb.ID(), entry.ContextMap()["instance"])
	reg := regServerFor(t, server.URL)
	assert.Equal(t, reg.URL(), entry.ContextMap()["registry"])
}
