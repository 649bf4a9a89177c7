package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"seadrift.ai/internal/sim/world"
)

// metricsSource is what the admin and metrics handlers read. Every method
// is safe to call off the world goroutine.
type metricsSource interface {
	ID() string
	Metrics() world.WorldMetrics
}

func stateHandler(w metricsSource) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			WorldID string             `json:"world_id"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{
			WorldID: w.ID(),
			Metrics: w.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// chunkHistoryHandler serves GET ?cx=&cz= from the SQLite index.
func chunkHistoryHandler(idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusServiceUnavailable)
			return
		}
		cx, err1 := strconv.Atoi(r.URL.Query().Get("cx"))
		cz, err2 := strconv.Atoi(r.URL.Query().Get("cz"))
		if err1 != nil || err2 != nil {
			http.Error(rw, "cx and cz must be integers", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		rows, err := idx.ChunkHistory(ctx, cx, cz)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		type row struct {
			Tick        uint64 `json:"tick"`
			Op          string `json:"op"`
			HasIsland   bool   `json:"has_island"`
			Plants      int    `json:"plants"`
			Fingerprint string `json:"fingerprint"`
		}
		out := make([]row, 0, len(rows))
		for _, e := range rows {
			out = append(out, row{Tick: e.Tick, Op: e.Op, HasIsland: e.HasIsland, Plants: e.Plants, Fingerprint: strconv.FormatUint(e.Fingerprint, 16)})
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"cx": cx, "cz": cz, "events": out})
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
