package acceptor

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ravenmoor/worldserver/internal/config"
	"github.com/ravenmoor/worldserver/internal/db"
)

const (
	// Backlog bounds how many authenticated endpoints may wait for the
	// cycle loop before further logins are refused as "server full".
	Backlog = 10

	handshakeTimeout = 5 * time.Second
)

// Endpoint is an authenticated player connection, ready for the world
// cycle loop. The loop takes over the connection after delivery.
type Endpoint struct {
	Conn  net.Conn
	Login string
}

// AccountStore is the credential backend the handshake authenticates
// against. *db.DB satisfies it.
type AccountStore interface {
	GetAccount(ctx context.Context, login string) (*db.Account, error)
	CreateAccount(ctx context.Context, login, passwordHash, ip string) error
	UpdateLastLogin(ctx context.Context, login, ip string) error
}

// Server accepts inbound client connections, runs the version/login
// handshake and yields authenticated endpoints on a bounded channel.
// It never touches the world registry.
type Server struct {
	cfg      config.WorldServer
	accounts AccountStore

	sendPool *BytePool
	readPool *BytePool

	endpoints chan Endpoint

	listener net.Listener
	mu       sync.Mutex
}

// NewServer creates an acceptor backed by the given account store.
func NewServer(cfg config.WorldServer, accounts AccountStore) *Server {
	return &Server{
		cfg:       cfg,
		accounts:  accounts,
		sendPool:  NewBytePool(MaxPacketSize),
		readPool:  NewBytePool(MaxPacketSize),
		endpoints: make(chan Endpoint, Backlog),
	}
}

// Endpoints returns the channel the cycle loop drains for new players.
func (s *Server) Endpoints() <-chan Endpoint {
	return s.endpoints
}

// Addr returns the address the acceptor listens on.
// Returns nil if the server is not running yet.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes the listener and stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run listens on cfg.BindAddress:cfg.Port and starts the accept loop.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on a ready listener.
// Used for testing with an arbitrary listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	slog.Info("acceptor started", "address", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			slog.Error("failed to accept connection", "error", err)
			continue
		}
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		slog.Error("failed to split host port", "connection", conn.RemoteAddr(), "error", err)
		conn.Close()
		return
	}

	conn.SetDeadline(time.Now().Add(handshakeTimeout))

	ep, ok := s.handshake(ctx, conn, host)
	if !ok {
		conn.Close()
		return
	}

	conn.SetDeadline(time.Time{})

	select {
	case s.endpoints <- ep:
		slog.Info("player authenticated", "login", ep.Login, "remote", host)
	default:
		// Intake queue full: refuse instead of blocking the accept path.
		s.refuse(conn, RefuseServerFull)
		slog.Warn("endpoint backlog full, refusing login", "login", ep.Login, "remote", host)
		conn.Close()
	}
}

// handshake reads the login packet and authenticates the client.
// On failure a refusal packet has already been sent.
func (s *Server) handshake(ctx context.Context, conn net.Conn, host string) (Endpoint, bool) {
	readBuf := s.readPool.Get(MaxPacketSize)
	defer s.readPool.Put(readBuf)

	payload, err := ReadPacket(conn, readBuf)
	if err != nil {
		slog.Debug("handshake read failed", "remote", host, "error", err)
		return Endpoint{}, false
	}

	req, err := ParseLogin(payload)
	if err != nil {
		slog.Debug("malformed login packet", "remote", host, "error", err)
		return Endpoint{}, false
	}

	if req.ClientVersion != s.cfg.ClientVersion {
		slog.Info("client version rejected", "remote", host, "got", req.ClientVersion, "want", s.cfg.ClientVersion)
		s.refuse(conn, RefuseOldVersion)
		return Endpoint{}, false
	}

	if !s.authenticate(ctx, req, host) {
		s.refuse(conn, RefuseWrongPassword)
		return Endpoint{}, false
	}

	sendBuf := s.sendPool.Get(MaxPacketSize)
	defer s.sendPool.Put(sendBuf)
	n := AppendLoginOK(sendBuf[PacketHeaderSize:])
	if err := WritePacket(conn, sendBuf, n); err != nil {
		slog.Error("failed to send login response", "remote", host, "error", err)
		return Endpoint{}, false
	}

	return Endpoint{Conn: conn, Login: req.Login}, true
}

func (s *Server) authenticate(ctx context.Context, req LoginRequest, host string) bool {
	acc, err := s.accounts.GetAccount(ctx, req.Login)
	if err != nil {
		slog.Error("account lookup failed", "login", req.Login, "error", err)
		return false
	}

	if acc == nil {
		if !s.cfg.AutoCreateAccounts {
			return false
		}
		hash, err := db.HashPassword(req.Password)
		if err != nil {
			slog.Error("password hashing failed", "login", req.Login, "error", err)
			return false
		}
		if err := s.accounts.CreateAccount(ctx, req.Login, hash, host); err != nil {
			slog.Error("account auto-create failed", "login", req.Login, "error", err)
			return false
		}
		slog.Info("account auto-created", "login", req.Login, "remote", host)
		return true
	}

	if !db.CheckPassword(acc.PasswordHash, req.Password) {
		slog.Info("wrong password", "login", req.Login, "remote", host)
		return false
	}

	if err := s.accounts.UpdateLastLogin(ctx, req.Login, host); err != nil {
		slog.Error("failed to record login", "login", req.Login, "error", err)
	}
	return true
}

func (s *Server) refuse(conn net.Conn, reason byte) {
	sendBuf := s.sendPool.Get(MaxPacketSize)
	defer s.sendPool.Put(sendBuf)
	n := AppendLoginRefused(sendBuf[PacketHeaderSize:], reason)
	if err := WritePacket(conn, sendBuf, n); err != nil {
		slog.Debug("failed to send refusal", "error", err)
	}
}
