package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/metervision/meter-reader/internal/metrics"
)

// MetricsMiddleware records request count, latency, and in-flight gauge.
// It wraps the router from the outside so unmatched requests are counted
// too; route templates resolved against the router keep label cardinality
// bounded, with unmatched paths collapsed into one label.
func MetricsMiddleware(m *metrics.Metrics, router *mux.Router) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.IncrementInFlight()
			defer m.DecrementInFlight()

			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			var match mux.RouteMatch
			if router != nil && router.Match(r, &match) && match.Route != nil {
				if template, err := match.Route.GetPathTemplate(); err == nil {
					route = template
				}
			}

			m.RecordHTTPRequest(r.Method, route, strconv.Itoa(wrapped.status), time.Since(start))
		})
	}
}
