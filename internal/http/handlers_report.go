package http

import (
	"net/http"
	"strings"
	"sync/atomic"

	"dailyledger/internal/log"
)

// handleReport renders the summary and table of a period. Partials are
// cached per period and day until the next write.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	period, err := ParsePeriodParam(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	key := "report|" + string(period) + "|" + s.svc.Store().Today().String()
	s.cached(w, r, key, func() (string, any) {
		return "report.html", s.reportViewOf(s.svc.Report(period))
	})
}

// handleAggregates renders the ledger grouped by ISO week or month.
func (s *Server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	by := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("by")))
	if by == "" {
		by = "month"
	}
	groups, err := s.svc.Aggregate(by)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	s.cached(w, r, "aggregates|"+by, func() (string, any) {
		return "aggregates.html", s.aggregatesViewOf(by, groups)
	})
}

// cached serves a rendered partial from the report cache, rendering it
// once for concurrent requests on a miss.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, key string, build func() (string, any)) {
	body, hit, err := s.reports.GetOrLoad(key, func() ([]byte, error) {
		name, data := build()
		return s.renderBytes(name, data)
	})
	if err != nil {
		s.structured.LogError(r.Context(), "Report rendering failed", err, log.ComponentTemplate, log.OpRender, nil)
		InternalServerError("Could not render the report").Write(w)
		return
	}
	if hit {
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
		log.FromContext(r.Context()).DebugContext(r.Context(), "Report cache hit", "key", key)
	} else {
		atomic.AddInt64(&s.appMetrics.cacheMisses, 1)
	}
	NewHTMXResponse().Header("Content-Type", "text/html; charset=utf-8").Body(body).Write(w)
}
