// Mock webhook destination for load testing. Point endpoints' forward_url at
// it, then read /stats to verify how many forwards arrived.
//
// Configuration via environment:
//
//	PORT          listen port (default 8080)
//	FAIL_PERCENT  percentage of requests answered with 500, to exercise retries
//	DELAY_MODE    when true, sleep MIN_DELAY..MAX_DELAY before responding
//	MIN_DELAY     lower delay bound (default 50ms)
//	MAX_DELAY     upper delay bound (default 250ms)
//	SLOW_PERCENT  percentage of requests delayed SLOW_DELAY_MIN..SLOW_DELAY_MAX
//	SLOW_DELAY_MIN, SLOW_DELAY_MAX
//	              slow-request delay bounds (default 30s..35s), for timeout tests
package main

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"
)

type config struct {
	port         string
	failPercent  float64
	delayMode    bool
	minDelay     time.Duration
	maxDelay     time.Duration
	slowPercent  float64
	slowDelayMin time.Duration
	slowDelayMax time.Duration
}

func loadConfig() config {
	cfg := config{
		port:         "8080",
		minDelay:     50 * time.Millisecond,
		maxDelay:     250 * time.Millisecond,
		slowDelayMin: 30 * time.Second,
		slowDelayMax: 35 * time.Second,
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.port = v
	}
	if v := os.Getenv("DELAY_MODE"); v == "true" || v == "1" {
		cfg.delayMode = true
	}
	if v := os.Getenv("FAIL_PERCENT"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.failPercent = p
		}
	}
	if v := os.Getenv("SLOW_PERCENT"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.slowPercent = p
		}
	}
	parseDelay(&cfg.minDelay, "MIN_DELAY")
	parseDelay(&cfg.maxDelay, "MAX_DELAY")
	parseDelay(&cfg.slowDelayMin, "SLOW_DELAY_MIN")
	parseDelay(&cfg.slowDelayMax, "SLOW_DELAY_MAX")
	return cfg
}

func parseDelay(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

type sink struct {
	cfg      config
	received atomic.Int64
	failed   atomic.Int64
	slow     atomic.Int64
}

func (s *sink) delayFor() time.Duration {
	if s.cfg.slowPercent > 0 && rand.Float64()*100 < s.cfg.slowPercent {
		s.slow.Add(1)
		return s.cfg.slowDelayMin + time.Duration(rand.Int63n(int64(s.cfg.slowDelayMax-s.cfg.slowDelayMin)+1))
	}
	if s.cfg.delayMode {
		return s.cfg.minDelay + time.Duration(rand.Int63n(int64(s.cfg.maxDelay-s.cfg.minDelay)+1))
	}
	return 0
}

func (s *sink) receive(w http.ResponseWriter, r *http.Request) {
	s.received.Add(1)

	if d := s.delayFor(); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	if s.cfg.failPercent > 0 && rand.Float64()*100 < s.cfg.failPercent {
		s.failed.Add(1)
		http.Error(w, "injected failure", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *sink) stats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{
		"received": s.received.Load(),
		"failed":   s.failed.Load(),
		"slow":     s.slow.Load(),
	})
}

func main() {
	cfg := loadConfig()
	s := &sink{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.stats)
	mux.HandleFunc("/", s.receive)

	httpServer := &http.Server{
		Addr:    ":" + cfg.port,
		Handler: mux,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("mock webhook destination listening on :%s (fail=%.1f%% delay=%v slow=%.2f%%)",
			cfg.port, cfg.failPercent, cfg.delayMode, cfg.slowPercent)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-stop
	log.Println("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
}
