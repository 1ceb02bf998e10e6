package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"drinksmenu/internal/metrics"
)

// Routes returns the full handler: router plus middleware chain.
func (s *Server) Routes() http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(s.notFound)
	router.MethodNotAllowed = http.HandlerFunc(s.methodNotAllowed)
	router.HandleOPTIONS = false

	handle := func(method, pattern string, h http.HandlerFunc) {
		router.HandlerFunc(method, pattern, route(pattern, h))
	}

	handle(http.MethodGet, "/drinks", s.listDrinksHandler)
	handle(http.MethodPost, "/drinks", s.requirePermission(PermPostDrinks, s.createDrinkHandler))
	handle(http.MethodGet, "/drinks-detail", s.requirePermission(PermGetDrinksDetail, s.listDrinkDetailsHandler))
	handle(http.MethodPatch, "/drinks/:id", s.requirePermission(PermPatchDrinks, s.updateDrinkHandler))
	handle(http.MethodDelete, "/drinks/:id", s.requirePermission(PermDeleteDrinks, s.deleteDrinkHandler))

	handle(http.MethodGet, "/drinks/events", s.drinkEventsHandler)

	handle(http.MethodGet, "/healthz", s.healthHandler)
	handle(http.MethodGet, "/readyz", s.readyHandler)
	handle(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}).ServeHTTP)

	return s.middleware(router)
}

// middleware wraps h in the standard chain. requestID is outermost so every
// log line, including a recovered panic, carries the id.
func (s *Server) middleware(h http.Handler) http.Handler {
	return s.requestID(s.recoverPanic(s.logRequests(s.enableCORS(s.rateLimit(h)))))
}
