package http

import (
	"bytes"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"dailyledger/internal/core"
	"dailyledger/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewHTMXResponse().BodyJSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports not ready when templates failed to parse or the
// ledger could not be loaded from its backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	code := http.StatusOK
	checks := map[string]any{}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.svc.Store().LoadErr(); err != nil {
		checks["ledger"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["ledger"] = map[string]any{"status": "ok", "records": s.svc.Store().Len()}
	}

	checks["cache"] = map[string]any{"report_entries": s.reports.Size()}
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients()}

	NewHTMXResponse().Status(code).BodyJSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rl := s.rateLimiter.GetMetrics()
	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_request_duration_avg_microseconds", "Average request duration", "gauge", traceMetrics.AverageResponseTime)
	metric("ledger_entries_saved_total", "Entries saved through the form or API", "counter", atomic.LoadInt64(&s.appMetrics.entries))
	metric("ledger_imports_total", "Successful imports", "counter", atomic.LoadInt64(&s.appMetrics.imports))
	metric("ledger_records", "Records currently in the ledger", "gauge", s.svc.Store().Len())
	metric("report_cache_hits_total", "Report cache hits", "counter", atomic.LoadInt64(&s.appMetrics.cacheHits))
	metric("report_cache_misses_total", "Report cache misses", "counter", atomic.LoadInt64(&s.appMetrics.cacheMisses))
	metric("report_cache_entries", "Cached report partials", "gauge", s.cacheManager.Entries())
	metric("rate_limit_hits_total", "Requests rejected by the rate limiter", "counter", rl.TotalHits)
	metric("active_rate_limit_clients", "Clients tracked by the rate limiter", "gauge", rl.ClientCount)
	metric("suspicious_requests_total", "Requests flagged as probes", "counter", s.securityDetector.GetMetrics().SuspiciousRequests)
	metric("uptime_seconds", "Application uptime in seconds", "gauge", int64(time.Since(s.appMetrics.uptime).Seconds()))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("Page not found").Write(w)
		return
	}
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}

	today := s.svc.Store().Today()
	s.render(w, r, http.StatusOK, "index.html", indexView{
		Today:    today.String(),
		Defaults: defaultEntry(today),
		Currency: s.currency,
		Periods:  core.Periods(),
	})
}

// renderBytes executes a template into memory so a failure never leaves a
// half-written response.
func (s *Server) renderBytes(name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, fmt.Errorf("templates not loaded")
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("execute %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	s.renderWith(w, r, NewHTMXResponse().Status(status), name, data)
}

func (s *Server) renderWith(w http.ResponseWriter, r *http.Request, resp *HTMXResponseBuilder, name string, data any) {
	body, err := s.renderBytes(name, data)
	if err != nil {
		s.structured.LogError(r.Context(), "Template rendering failed", err, log.ComponentTemplate, log.OpRender,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, ""))
		InternalServerError("Could not render the page").Write(w)
		return
	}
	resp.Header("Content-Type", "text/html; charset=utf-8").Body(body).Write(w)
}
