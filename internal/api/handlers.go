package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"drinksmenu/internal/auth"
	"drinksmenu/internal/buildinfo"
	"drinksmenu/internal/metrics"
	"drinksmenu/internal/model"
)

// Permission strings carried in the token's permissions claim.
const (
	PermGetDrinksDetail = "get:drinks-detail"
	PermPostDrinks      = "post:drinks"
	PermPatchDrinks     = "patch:drinks"
	PermDeleteDrinks    = "delete:drinks"
)

type drinkInput struct {
	Title  *string         `json:"title"`
	Recipe json.RawMessage `json:"recipe"`
}

var errTitleMissing = errors.New("title is required")

// listDrinksHandler handles GET /drinks (public, short view).
func (s *Server) listDrinksHandler(w http.ResponseWriter, r *http.Request) {
	drinks, err := s.Store.ListDrinks(r.Context())
	if err != nil {
		s.failed(w, r, http.StatusNotFound, "list drinks", err)
		return
	}
	short, err := model.ShortAll(drinks)
	if err != nil {
		s.failed(w, r, http.StatusNotFound, "list drinks", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "drinks": short})
}

// listDrinkDetailsHandler handles GET /drinks-detail (long view).
func (s *Server) listDrinkDetailsHandler(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	drinks, err := s.Store.ListDrinks(r.Context())
	if err != nil {
		s.failed(w, r, http.StatusNotFound, "list drink details", err)
		return
	}
	long, err := model.LongAll(drinks)
	if err != nil {
		s.failed(w, r, http.StatusNotFound, "list drink details", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "drinks": long})
}

// createDrinkHandler handles POST /drinks. Every failure answers 422.
func (s *Server) createDrinkHandler(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	const op = "create drink"
	var in drinkInput
	if err := readJSON(w, r, &in); err != nil {
		s.failed(w, r, http.StatusUnprocessableEntity, op, err)
		return
	}
	if in.Title == nil {
		s.failed(w, r, http.StatusUnprocessableEntity, op, errTitleMissing)
		return
	}
	recipe, err := model.EncodeRecipe(in.Recipe)
	if err != nil {
		s.failed(w, r, http.StatusUnprocessableEntity, op, err)
		return
	}
	d, err := s.Store.CreateDrink(r.Context(), *in.Title, recipe)
	if err != nil {
		s.failed(w, r, http.StatusUnprocessableEntity, op, err)
		return
	}
	long, err := d.Long()
	if err != nil {
		s.failed(w, r, http.StatusUnprocessableEntity, op, err)
		return
	}
	metrics.DrinkMutations.WithLabelValues("create").Inc()
	s.publish(EventDrinkCreated, d)
	writeJSON(w, http.StatusOK, envelope{"success": true, "drinks": []model.LongDrink{long}})
}

// updateDrinkHandler handles PATCH /drinks/:id. Only fields present in the
// body change. Every failure answers 404.
func (s *Server) updateDrinkHandler(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	const op = "update drink"
	id, err := readIDParam(r)
	if err != nil {
		s.failed(w, r, http.StatusNotFound, op, err)
		return
	}
	var in drinkInput
	if err := readJSON(w, r, &in); err != nil {
		s.failed(w, r, http.StatusNotFound, op, err)
		return
	}
	patch := model.DrinkPatch{Title: in.Title}
	if present(in.Recipe) {
		recipe, err := model.EncodeRecipe(in.Recipe)
		if err != nil {
			s.failed(w, r, http.StatusNotFound, op, err)
			return
		}
		patch.Recipe = &recipe
	}
	d, err := s.Store.UpdateDrink(r.Context(), id, patch)
	if err != nil {
		s.failed(w, r, http.StatusNotFound, op, err)
		return
	}
	long, err := d.Long()
	if err != nil {
		s.failed(w, r, http.StatusNotFound, op, err)
		return
	}
	metrics.DrinkMutations.WithLabelValues("update").Inc()
	s.publish(EventDrinkUpdated, d)
	writeJSON(w, http.StatusOK, envelope{"success": true, "drinks": []model.LongDrink{long}})
}

// deleteDrinkHandler handles DELETE /drinks/:id. Every failure answers 404.
func (s *Server) deleteDrinkHandler(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	const op = "delete drink"
	id, err := readIDParam(r)
	if err != nil {
		s.failed(w, r, http.StatusNotFound, op, err)
		return
	}
	if err := s.Store.DeleteDrink(r.Context(), id); err != nil {
		s.failed(w, r, http.StatusNotFound, op, err)
		return
	}
	metrics.DrinkMutations.WithLabelValues("delete").Inc()
	s.Broker.Publish(newDrinkEvent(EventDrinkDeleted, id, nil))
	writeJSON(w, http.StatusOK, envelope{"success": true, "delete": id})
}

// publish sends the short view of d; a drink whose recipe cannot be
// summarized is announced without a body.
func (s *Server) publish(typ string, d model.Drink) {
	var body *model.ShortDrink
	if short, err := d.Short(); err == nil {
		body = &short
	}
	s.Broker.Publish(newDrinkEvent(typ, d.ID, body))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"status": "ok", "build": buildinfo.Info()})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		s.failed(w, r, http.StatusServiceUnavailable, "ready", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"status": "ready"})
}
