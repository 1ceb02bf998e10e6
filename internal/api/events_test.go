package api

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestDrinkEventsRequiresUpgrade(t *testing.T) {
	s, _ := newTestServer(t)
	wantMessage(t, do(t, s.Routes(), http.MethodGet, "/drinks/events", "", ""), http.StatusBadRequest, "Bad Request")
}

func TestDrinkEventsStream(t *testing.T) {
	s, iss := newTestServer(t)
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/drinks/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	send := func(method, path, perm, body string) {
		t.Helper()
		req, _ := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+iss.Token(t, perm))
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s %s: %d", method, path, resp.StatusCode)
		}
	}
	next := func() DrinkEvent {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var evt DrinkEvent
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("read event: %v", err)
		}
		return evt
	}

	send(http.MethodPost, "/drinks", PermPostDrinks, `{"title":"Water","recipe":`+waterRecipe+`}`)
	created := next()
	if created.Type != EventDrinkCreated || created.Drink == nil || created.Drink.Title != "Water" {
		t.Fatalf("created event: %+v", created)
	}
	id := strconv.FormatInt(created.DrinkID, 10)

	send(http.MethodPatch, "/drinks/"+id, PermPatchDrinks, `{"title":"Still Water"}`)
	if evt := next(); evt.Type != EventDrinkUpdated || evt.Drink.Title != "Still Water" {
		t.Fatalf("updated event: %+v", evt)
	}

	send(http.MethodDelete, "/drinks/"+id, PermDeleteDrinks, "")
	if evt := next(); evt.Type != EventDrinkDeleted || evt.DrinkID != created.DrinkID || evt.Drink != nil {
		t.Fatalf("deleted event: %+v", evt)
	}
}
