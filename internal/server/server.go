// Package server drives the world cycle: all registry access happens
// on the single goroutine running Server.Run, between discrete cycles.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/ravenmoor/worldserver/internal/acceptor"
	"github.com/ravenmoor/worldserver/internal/config"
	"github.com/ravenmoor/worldserver/internal/timer"
	"github.com/ravenmoor/worldserver/internal/world"
)

// Server owns the world registry and runs the per-cycle work: endpoint
// intake, the time-sliced aging sweep and periodic snapshots.
type Server struct {
	cfg config.WorldServer
	wm  *world.WorldMap

	endpoints <-chan acceptor.Endpoint
	players   map[string]acceptor.Endpoint

	saveTimer *timer.Timer
	exportReq chan struct{}
}

// New creates a cycle-loop server over an already populated registry.
// endpoints may be nil when the server runs without an acceptor.
func New(cfg config.WorldServer, wm *world.WorldMap, endpoints <-chan acceptor.Endpoint) *Server {
	return &Server{
		cfg:       cfg,
		wm:        wm,
		endpoints: endpoints,
		players:   make(map[string]acceptor.Endpoint),
		exportReq: make(chan struct{}, 1),
	}
}

// RequestExport schedules a plain-text world export at the start of
// the next cycle. Safe to call from any goroutine; coalesces repeated
// requests.
func (s *Server) RequestExport() {
	select {
	case s.exportReq <- struct{}{}:
	default:
	}
}

// Run executes the cycle loop until ctx is cancelled, then saves the
// world and tears the registry down.
func (s *Server) Run(ctx context.Context) error {
	s.saveTimer = timer.New(s.cfg.SaveInterval())
	s.saveTimer.Next() // consume the immediate first firing; the world was just loaded

	ticker := time.NewTicker(s.cfg.CycleInterval())
	defer ticker.Stop()

	slog.Info("world cycle started", "interval", s.cfg.CycleInterval(), "maps", s.wm.Count())

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-ticker.C:
			s.cycle()
		}
	}
}

// cycle is one unit of per-cycle work. The aging sweep is resumable
// and time-boxed, so a long sweep spreads across many cycles instead
// of stalling one.
func (s *Server) cycle() {
	s.drainEndpoints()

	if s.wm.AllMapsAged() {
		slog.Debug("aging sweep complete", "maps", s.wm.Count())
	}

	select {
	case <-s.exportReq:
		if err := s.wm.ExportTo(s.cfg.ExportDir); err != nil {
			slog.Error("world export failed", "dir", s.cfg.ExportDir, "error", err)
		} else {
			slog.Info("world exported", "dir", s.cfg.ExportDir)
		}
	default:
	}

	if s.cfg.SaveIntervalSeconds > 0 && s.saveTimer.Next() {
		if err := s.wm.SaveToDisk(s.cfg.SavePrefix); err != nil {
			slog.Error("periodic world save failed", "prefix", s.cfg.SavePrefix, "error", err)
		}
	}
}

func (s *Server) drainEndpoints() {
	if s.endpoints == nil {
		return
	}
	for {
		select {
		case ep := <-s.endpoints:
			if old, ok := s.players[ep.Login]; ok {
				old.Conn.Close()
			}
			s.players[ep.Login] = ep
		default:
			return
		}
	}
}

func (s *Server) shutdown() {
	slog.Info("world shutting down", "players", len(s.players), "maps", s.wm.Count())

	if err := s.wm.SaveToDisk(s.cfg.SavePrefix); err != nil {
		slog.Error("final world save failed", "prefix", s.cfg.SavePrefix, "error", err)
	}

	for _, ep := range s.players {
		ep.Conn.Close()
	}
	s.players = make(map[string]acceptor.Endpoint)

	s.wm.Clear()
}
