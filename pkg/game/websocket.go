package game

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gaia-mud/gaia/pkg/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect from arbitrary origins; the game's own
	// login gate is the access control.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEvent is the JSON frame sent to WebSocket clients.
type wsEvent struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Source string `json:"source,omitempty"`
}

// handleWebSocket upgrades /ws and drives the connection as a session.
// A valid ?token= skips the connect step.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	gm := s.Game
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		gm.Logf("ws: upgrade: %v", err)
		return
	}

	sess := NewSession(gm, gm.Sessions.NextID(), nil)
	sess.Addr = r.RemoteAddr
	sess.Transport = "websocket"

	var writeErr error
	sess.SendFunc = func(msg string) {
		if writeErr != nil {
			return
		}
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		writeErr = conn.WriteJSON(wsEvent{Type: "text", Text: msg})
		if writeErr != nil {
			sess.Close()
		}
	}
	sess.ReceiveFunc = func(ev events.Event) {
		if ev.Text == "" {
			return
		}
		typ := "text"
		if ev.Type == events.EvMessage {
			typ = "message"
		}
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(wsEvent{Type: typ, Text: ev.Text, Source: ev.Source}); err != nil {
			sess.Close()
		}
	}

	gm.Sessions.Add(sess)
	sess.Run()
	if gm.Metrics != nil {
		gm.Metrics.ConnectionOpened("websocket")
	}
	gm.Logf("[%d] ws connected from %s", sess.ID, sess.Addr)

	defer func() {
		gm.Sessions.Remove(sess)
		sess.Close()
		conn.Close()
		gm.Logf("[%d] ws disconnected", sess.ID)
	}()

	if token := r.URL.Query().Get("token"); token != "" && gm.Auth != nil {
		if claims, err := gm.Auth.ValidateToken(token); err == nil {
			if acct, err := gm.Accounts.Get(claims.AccountID); err == nil {
				if err := gm.Sessions.Authenticate(sess, acct); err == nil {
					sess.Send("Welcome back, " + acct.Login + ".")
				}
			}
		} else {
			sess.Send("Token rejected; log in with connect <user> <password>.")
		}
	}
	if sess.State() == StateLogin {
		sess.Send(gm.Texts.Welcome())
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if sess.Closed() {
			return
		}
		gm.HandleLine(sess, decodeLine(data))
	}
}

// handleAuthLogin is POST /auth/login {login, password} -> {token}.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Game.Auth == nil {
		http.Error(w, "auth not configured", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	token, err := s.Game.Auth.Login(req.Login, req.Password)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// handleAuthRefresh is POST /auth/refresh {token} -> {token}.
func (s *Server) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Game.Auth == nil {
		http.Error(w, "auth not configured", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	token, err := s.Game.Auth.RefreshToken(req.Token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}
