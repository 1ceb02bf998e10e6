// Package main runs a demo WebSocket client that prints menu change events.
//
//	go run ./scripts -addr localhost:8080
//
// With TOKEN set to a bearer token carrying post:drinks it also creates a
// drink so at least one event shows up.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type drinkEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	DrinkID int64           `json:"drinkId"`
	Drink   json.RawMessage `json:"drink,omitempty"`
	TS      time.Time       `json:"ts"`
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server host:port")
	wait := flag.Duration("wait", 5*time.Second, "how long to listen")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/drinks/events"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()
	log.Printf("connected to %s", u.String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var evt drinkEvent
			if err := c.ReadJSON(&evt); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s drink=%d %s", evt.Type, evt.DrinkID, string(evt.Drink))
		}
	}()

	if token := os.Getenv("TOKEN"); token != "" {
		title := fmt.Sprintf("Demo %d", time.Now().Unix())
		body, _ := json.Marshal(map[string]any{
			"title":  title,
			"recipe": []map[string]any{{"name": "water", "color": "blue", "parts": 1}},
		})
		req, _ := http.NewRequest(http.MethodPost, "http://"+*addr+"/drinks", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Fatal(err)
		}
		_ = resp.Body.Close()
		log.Printf("POST /drinks %q -> %d", title, resp.StatusCode)
	}

	select {
	case <-time.After(*wait):
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	case <-done:
	}
}
