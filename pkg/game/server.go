package game

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gaia-mud/gaia/pkg/events"
)

// ErrBind marks a listener that could not be opened, so the entry point
// can distinguish bind failures from other startup errors.
var ErrBind = errors.New("game: bind failed")

// Server runs the telnet and WebSocket listeners over a Game.
type Server struct {
	Game *Game

	tlsConfig *tls.Config

	listener net.Listener
	webSrv   *http.Server
}

// NewServer assembles a Server. TLS is configured per the game config;
// a nil TLS result means cleartext listeners.
func NewServer(gm *Game) (*Server, error) {
	s := &Server{Game: gm}
	cfg := gm.Cfg
	if cfg.TLS {
		tc, err := newTLSConfig(cfg, gm.Logf)
		if err != nil {
			return nil, err
		}
		s.tlsConfig = tc
	}
	return s, nil
}

// Run opens both listeners and serves until the game requests shutdown
// or a listener fails.
func (s *Server) Run() error {
	gm := s.Game
	cfg := gm.Cfg

	addr := fmt.Sprintf(":%d", cfg.TelnetPort)
	var ln net.Listener
	var err error
	if s.tlsConfig != nil {
		ln, err = tls.Listen("tcp", addr, s.tlsConfig)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("%w: telnet %s: %v", ErrBind, addr, err)
	}
	s.listener = ln
	gm.Logf("server: telnet listening on %s", addr)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/auth/login", s.handleAuthLogin)
	mux.HandleFunc("/auth/refresh", s.handleAuthRefresh)
	wsAddr := fmt.Sprintf(":%d", cfg.WebSocketPort)
	s.webSrv = &http.Server{
		Addr:         wsAddr,
		Handler:      mux,
		TLSConfig:    s.tlsConfig,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	wsLn, err := net.Listen("tcp", wsAddr)
	if err != nil {
		ln.Close()
		return fmt.Errorf("%w: websocket %s: %v", ErrBind, wsAddr, err)
	}
	gm.Logf("server: websocket listening on %s", wsAddr)

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" && gm.Metrics != nil {
		mmux := http.NewServeMux()
		mmux.Handle("/metrics", gm.Metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mmux}
		gm.Logf("server: metrics on %s/metrics", cfg.MetricsAddr)
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return s.acceptLoop(ln) })
	g.Go(func() error {
		var err error
		if s.tlsConfig != nil {
			err = s.webSrv.ServeTLS(wsLn, "", "")
		} else {
			err = s.webSrv.Serve(wsLn)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	if metricsSrv != nil {
		g.Go(func() error {
			err := metricsSrv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		select {
		case <-gm.ShutdownCh:
		case <-ctx.Done():
		}
		s.shutdown(metricsSrv)
		return nil
	})

	return g.Wait()
}

// shutdown closes listeners, notifies sessions and flushes the world.
func (s *Server) shutdown(metricsSrv *http.Server) {
	gm := s.Game
	gm.Logf("server: shutting down")

	for _, sess := range gm.Sessions.All() {
		sess.Send("*** Server is shutting down. ***")
		sess.Close()
	}

	if s.listener != nil {
		s.listener.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.webSrv.Shutdown(ctx)
	if metricsSrv != nil {
		metricsSrv.Shutdown(ctx)
	}

	gm.Cache.StopWriteback()
	if gm.Scrollback != nil {
		gm.Scrollback.Close()
	}
	gm.Texts.Close()
}

// acceptLoop accepts telnet connections until the listener closes.
func (s *Server) acceptLoop(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.Game.Logf("server: accept: %v", err)
			continue
		}
		go s.handleConn(conn)
	}
}

// handleConn drives one telnet session from welcome to disconnect.
func (s *Server) handleConn(conn net.Conn) {
	gm := s.Game
	sess := NewSession(gm, gm.Sessions.NextID(), conn)
	gm.Sessions.Add(sess)
	sess.Run()
	if gm.Metrics != nil {
		gm.Metrics.ConnectionOpened("telnet")
	}
	gm.Logf("[%d] connected from %s", sess.ID, sess.Addr)
	gm.Bus.Emit(events.Event{Type: events.EvConnect, Source: sess.Addr})

	defer func() {
		gm.Sessions.Remove(sess)
		sess.Close()
		gm.Bus.Emit(events.Event{Type: events.EvDisconnect, Source: sess.Addr})
		gm.Logf("[%d] disconnected", sess.ID)
	}()

	sess.Send(gm.Texts.Welcome())

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	for scanner.Scan() {
		if sess.Closed() {
			return
		}
		gm.HandleLine(sess, decodeLine(scanner.Bytes()))
	}
}
