package player

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/zachfi/icyradio/pkg/radio"
	"github.com/zachfi/icyradio/pkg/shoutcast"
)

const wsWriteDeadline = 10 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type statusResponse struct {
	Playing bool          `json:"playing"`
	Volume  int           `json:"volume"`
	Muted   bool          `json:"muted"`
	Session *radio.Status `json:"session,omitempty"`
}

type stationResponse struct {
	Index int `json:"index"`
	radio.Station
}

// RegisterRoutes adds the control API to router.
func (p *Player) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/status", p.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/stations", p.handleStations).Methods(http.MethodGet)
	router.HandleFunc("/api/play", p.handlePlay).Methods(http.MethodPost)
	router.HandleFunc("/api/stop", p.handleStop).Methods(http.MethodPost)
	router.HandleFunc("/api/volume", p.handleVolume).Methods(http.MethodPost)
	router.HandleFunc("/api/titles", p.handleTitles).Methods(http.MethodGet)
}

func (p *Player) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{}
	resp.Volume, resp.Muted = p.Volume()
	if st, ok := p.ctrl.Status(); ok {
		resp.Playing = true
		resp.Session = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (p *Player) handleStations(w http.ResponseWriter, _ *http.Request) {
	stations := p.ctrl.Stations()
	resp := make([]stationResponse, 0, len(stations))
	for i, s := range stations {
		resp = append(resp, stationResponse{Index: i, Station: s})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePlay starts ?station=N or ?url=...&name=...
func (p *Player) handlePlay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var id radio.Identifier
	switch {
	case q.Get("url") != "":
		name := q.Get("name")
		if name == "" {
			name = q.Get("url")
		}
		id = radio.ByStation(radio.Station{Name: name, URL: q.Get("url")})
	case q.Get("station") != "":
		i, err := strconv.Atoi(q.Get("station"))
		if err != nil {
			http.Error(w, "station must be an integer", http.StatusBadRequest)
			return
		}
		id = radio.ByIndex(i)
	default:
		http.Error(w, "missing station or url", http.StatusBadRequest)
		return
	}

	if err := p.Play(r.Context(), id); err != nil {
		var rangeErr *radio.OutOfRangeError
		var connErr *shoutcast.ConnectionError
		switch {
		case errors.As(err, &rangeErr):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.As(err, &connErr):
			http.Error(w, err.Error(), http.StatusBadGateway)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	p.handleStatus(w, r)
}

func (p *Player) handleStop(w http.ResponseWriter, r *http.Request) {
	p.Stop()
	p.handleStatus(w, r)
}

// handleVolume applies ?level=N and/or ?muted=true|false.
func (p *Player) handleVolume(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("level") == "" && q.Get("muted") == "" {
		http.Error(w, "missing level or muted", http.StatusBadRequest)
		return
	}

	var muted *bool
	if v := q.Get("muted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "muted must be a boolean", http.StatusBadRequest)
			return
		}
		muted = &b
	}

	if v := q.Get("level"); v != "" {
		level, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "level must be an integer", http.StatusBadRequest)
			return
		}
		if err := p.SetVolume(level); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if muted != nil {
		p.SetMuted(*muted)
	}

	p.handleStatus(w, r)
}

// handleTitles streams session events as JSON websocket messages until the
// client goes away.
func (p *Player) handleTitles(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	events, cancel := p.ctrl.Subscribe()
	defer cancel()

	// Drain incoming messages (ping/pong, close frames) without blocking.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// New clients learn the current title right away.
	if st, ok := p.ctrl.Status(); ok && st.Title != "" {
		if err := writeEvent(conn, radio.Event{Type: radio.EventTitleChanged, SessionID: st.SessionID, Station: st.Station, Title: st.Title}); err != nil {
			return
		}
	}

	for {
		select {
		case <-closed:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, e); err != nil {
				p.logger.Debug("websocket write failed", "err", err)
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, e radio.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
	return conn.WriteJSON(e)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
