package http

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	syncx "github.com/mind-engage/mindengage-placement/internal/sync"
)

// GET /events?after=<seq>&limit=<n>
func EventsHandler(repo *syncx.EventRepo, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, err := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		if err != nil || after < 0 {
			after = 0
		}
		limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
		evs, err := repo.After(r.Context(), after, limit)
		if err != nil {
			writeError(w, log, err)
			return
		}
		next := after
		if len(evs) > 0 {
			next = evs[len(evs)-1].Seq
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": evs, "next": next})
	}
}
