package api

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"drinksmenu/internal/auth"
	"drinksmenu/internal/metrics"
)

// protectedHandler receives the claims of a token that passed the gate.
type protectedHandler func(w http.ResponseWriter, r *http.Request, claims *auth.Claims)

// requirePermission runs the authorization gate for permission before next.
func (s *Server) requirePermission(permission string, next protectedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.Auth.Authorize(r, permission)
		if err != nil {
			var aerr *auth.Error
			if !errors.As(err, &aerr) {
				s.failed(w, r, http.StatusUnauthorized, "authorize", err)
				return
			}
			metrics.AuthFailures.WithLabelValues(aerr.Code).Inc()
			s.Logger.WithFields(logrus.Fields{
				"code":       aerr.Code,
				"status":     aerr.Status,
				"permission": permission,
				"request_id": RequestIDFromContext(r.Context()),
			}).WithError(err).Info("authorization failed")
			s.authErrorResponse(w, r, aerr)
			return
		}
		next(w, r, claims)
	}
}
