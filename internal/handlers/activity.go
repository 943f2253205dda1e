package handlers

import (
	"net/http"
	"time"

	"fichapro/internal/activity"
	applog "fichapro/internal/log"
)

// Activity lists the audit trail, newest first. Filters: kind, action,
// from, to (dates, inclusive).
func Activity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requestUser(w, r); !ok {
		return
	}

	ctx := r.Context()
	filter := activity.Filter{
		Kind:   r.URL.Query().Get("kind"),
		Action: r.URL.Query().Get("action"),
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "from must be a date in YYYY-MM-DD form")
			return
		}
		filter.From = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "to must be a date in YYYY-MM-DD form")
			return
		}
		filter.To = parsed
	}

	records, err := activity.List(ctx, database, filter)
	if err != nil {
		applog.Error(ctx, "failed to list activity", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load activity")
		return
	}
	writeJSON(w, http.StatusOK, records)
}
