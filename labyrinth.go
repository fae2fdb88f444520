// Laberinto
//
// Two players share one maze. The first connection creates a game and plays
// the Mage, who walks the maze; the second joins it by id and plays the
// Priestess, who sees the clues for every riddle door the Mage runs into.
//
// Features:
// - A single websocket endpoint: $path/ws
// - Shareable join links: $path/join/:gameid, with a QR code at .../qr
// - Game logic lives in games/labyrinth; this file only moves frames
// - Sessions idle longer than --session-timeout are ended by the hub

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Seednode/laberinto/games/labyrinth"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

const (
	maxFrameSize = 8 << 10
	sendBuffer   = 32
)

type Client struct {
	id   string
	conn *websocket.Conn
	send chan labyrinth.Outbound
}

type inbound struct {
	client *Client
	cmd    labyrinth.Command
}

// Hub owns every websocket client and is the only goroutine that talks to
// the engine, so events leave in the order the engine produced them.
type Hub struct {
	engine      *labyrinth.Engine
	log         logrus.FieldLogger
	idleTimeout time.Duration

	clients map[string]*Client

	register chan *Client
	unreg    chan *Client
	commands chan inbound
	done     chan struct{}
}

func newHub(engine *labyrinth.Engine, log logrus.FieldLogger, idleTimeout time.Duration) *Hub {
	return &Hub{
		engine:      engine,
		log:         log,
		idleTimeout: idleTimeout,
		clients:     make(map[string]*Client),
		register:    make(chan *Client),
		unreg:       make(chan *Client),
		commands:    make(chan inbound),
		done:        make(chan struct{}),
	}
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)

	var reap <-chan time.Time
	if h.idleTimeout > 0 {
		ticker := time.NewTicker(h.idleTimeout / 2)
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			return

		case c := <-h.register:
			h.clients[c.id] = c

		case c := <-h.unreg:
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.deliver(h.engine.Disconnect(c.id))

		case in := <-h.commands:
			h.deliver(h.engine.Handle(in.client.id, in.cmd))

		case now := <-reap:
			h.deliver(h.engine.Expire(now.Add(-h.idleTimeout)))
		}
	}
}

func (h *Hub) deliver(out []labyrinth.Outbound) {
	for _, o := range out {
		if o.Err != nil {
			h.log.WithFields(logrus.Fields{
				"conn":   o.To,
				"reason": o.Err.Error(),
			}).Info("command rejected")
		}

		c, ok := h.clients[o.To]
		if !ok {
			continue
		}

		select {
		case c.send <- o:
		default:
			h.log.WithField("conn", c.id).Warn("dropping slow client")
			delete(h.clients, c.id)
			close(c.send)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.log.WithError(err).Warn("GAMES: Websocket upgrade failed")
			return
		}

		client := &Client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan labyrinth.Outbound, sendBuffer),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		logf(cfg, "GAMES: Connection %s opened from %s", client.id, realIP(r))

		go client.writePump()
		client.readPump(hub)

		logf(cfg, "GAMES: Connection %s closed", client.id)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		// Malformed frames still reach the engine, which answers them with
		// an unknown command notice.
		var cmd labyrinth.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.log.WithField("conn", c.id).WithError(err).Info("malformed frame")
			cmd = labyrinth.Command{}
		}

		select {
		case h.commands <- inbound{client: c, cmd: cmd}:
		case <-h.done:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// qrHandler renders a PNG QR code pointing at the join link it hangs off.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		scheme := cfg.scheme()
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		_, _ = w.Write(png)
	}
}

func getIndexHandler(cfg *Config, page []byte, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		if _, err := w.Write(page); err != nil {
			errs <- err
		}
	}
}

func loadCatalog(cfg *Config) (*labyrinth.StaticCatalog, error) {
	if cfg.content == "" {
		return labyrinth.DefaultCatalog()
	}
	return labyrinth.LoadCatalogFile(cfg.content)
}

// registerLabyrinthGame sets up routes so that:
//   - $path                  → HTML client, starts a new game
//   - $path/join/:gameid     → HTML client, joins an existing game
//   - $path/join/:gameid/qr  → PNG QR code for that join link
//   - $path/ws               → websocket shared by every game
func registerLabyrinthGame(ctx context.Context, cfg *Config, path string, mux *httprouter.Router, errs chan<- error) error {
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return fmt.Errorf("loading content: %w", err)
	}

	for maze, doors := range catalog.OrphanDoors() {
		cfg.log.WithField("maze", maze).Infof("GAMES: %d riddle doors have no riddle and stay sealed", len(doors))
	}

	tag, err := labyrinth.ParseLanguage(cfg.language)
	if err != nil {
		return err
	}

	log := cfg.log.WithField("game", "labyrinth")

	engine := labyrinth.NewEngine(
		labyrinth.NewRegistry(catalog),
		labyrinth.WithLogger(log),
		labyrinth.WithPrinter(labyrinth.NewPrinter(tag)),
	)

	hub := newHub(engine, log, cfg.sessionTimeout)
	go hub.run(ctx)

	raw, err := assets.ReadFile("assets/labyrinth/index.html")
	if err != nil {
		return err
	}
	page := bytes.ReplaceAll(raw, []byte("{{prefix}}"), []byte(cfg.prefix))
	page = bytes.ReplaceAll(page, []byte("{{lang}}"), []byte(tag.String()))

	mux.GET(cfg.prefix+path, getIndexHandler(cfg, page, errs))
	mux.GET(cfg.prefix+path+"/join/:gameid", getIndexHandler(cfg, page, errs))
	mux.GET(cfg.prefix+path+"/join/:gameid/qr", qrHandler(cfg))
	mux.GET(cfg.prefix+path+"/ws", serveWS(cfg, hub))

	return nil
}
