package http

import (
	"errors"
	"net/http"
	"sync/atomic"

	"dailyledger/internal/core"
	"dailyledger/internal/log"
)

// handleSubmitEntry saves the day's figures and answers with the derived
// metrics. Field problems give 422, persistence failures 500; in both cases
// nothing is saved.
func (s *Server) handleSubmitEntry(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		logger.WarnContext(ctx, "Unreadable entry body", log.FieldError, err)
		if wantsJSON(r) {
			JSONError(http.StatusBadRequest, "invalid request body").Write(w)
			return
		}
		BadRequestError("Invalid request body").Write(w)
		return
	}

	sub, err := s.svc.SubmitEntry(ctx, p.EntryInput())
	var fe core.FieldErrors
	switch {
	case errors.As(err, &fe):
		if wantsJSON(r) {
			NewHTMXResponse().Status(http.StatusUnprocessableEntity).
				BodyJSON(map[string]any{"errors": fe}).Write(w)
			return
		}
		s.render(w, r, http.StatusUnprocessableEntity, "entry_result.html", entryResultView{
			FieldErrors: fieldErrorsView(fe),
		})
		return
	case err != nil:
		logger.ErrorContext(ctx, "Entry not saved", log.FieldOperation, log.OpSubmit, log.FieldError, err)
		if wantsJSON(r) {
			JSONError(http.StatusInternalServerError, "the entry could not be saved").Write(w)
			return
		}
		s.render(w, r, http.StatusInternalServerError, "entry_result.html", entryResultView{
			Message: "The entry could not be saved: " + err.Error(),
		})
		return
	}

	atomic.AddInt64(&s.appMetrics.entries, 1)
	s.invalidateReports()

	date := sub.Record.Date.String()
	if wantsJSON(r) {
		NewHTMXResponse().TriggerLedgerUpdated(date).BodyJSON(toSubmissionJSON(sub, true)).Write(w)
		return
	}
	resp := NewHTMXResponse().
		TriggerLedgerUpdated(date).
		TriggerSuccessNotification("Saved " + date)
	if len(sub.Warnings) > 0 {
		resp.TriggerNotification(NotificationWarning, "Saved with warnings, check the figures", 5000)
	}
	s.renderWith(w, r, resp, "entry_result.html", entryResultView{
		Saved:    true,
		Date:     date,
		Metrics:  s.metricsOf(sub.Record),
		Warnings: sub.Warnings,
	})
}

// handleDerive computes the metrics for an entry without saving it.
func (s *Server) handleDerive(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		JSONError(http.StatusBadRequest, "invalid request body").Write(w)
		return
	}
	sub, err := s.svc.Preview(p.EntryInput())
	var fe core.FieldErrors
	if errors.As(err, &fe) {
		NewHTMXResponse().Status(http.StatusUnprocessableEntity).
			BodyJSON(map[string]any{"errors": fe}).Write(w)
		return
	}
	if err != nil {
		JSONError(http.StatusInternalServerError, err.Error()).Write(w)
		return
	}
	NewHTMXResponse().BodyJSON(toSubmissionJSON(sub, false)).Write(w)
}
