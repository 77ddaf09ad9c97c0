package main

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"arenasv/arenasv/arena"
	"arenasv/arenasv/wire"
)

const shutdownGrace = 200 * time.Millisecond

type Server struct {
	handlers map[wire.CmdID]Handler
	clock    arena.Clock
	tick     time.Duration
	newRand  func() *rand.Rand
	exit     func(code int)

	mtx      sync.Mutex
	sessions [wire.UserCnt]Session

	battles BattlePool

	mListener sync.Mutex
	listener  *net.TCPListener
	quitOnce  sync.Once
	chQuit    chan struct{}
}

func NewServer() *Server {
	sv := &Server{
		handlers: defaultHandlers,
		clock:    arena.RealClock{},
		tick:     100 * time.Millisecond,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		exit:   os.Exit,
		chQuit: make(chan struct{}),
	}
	for i := range sv.sessions {
		sv.sessions[i] = Session{ID: i, BattleID: -1, InviterID: -1}
	}
	return sv
}

func (sv *Server) newArena() *arena.Arena {
	return arena.New(sv.newRand())
}

// listen binds the first free port in [port, port+portRange].
func listen(host string, port, portRange int) (*net.TCPListener, error) {
	var lastErr error
	for p := port; p <= port+portRange; p++ {
		addr := net.JoinHostPort(host, fmt.Sprint(p))
		tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
		if err != nil {
			return nil, err
		}
		listener, err := net.ListenTCP("tcp", tcpAddr)
		if err == nil {
			return listener, nil
		}
		logger.Warn("bind failed", zap.String("addr", addr), zap.Error(err))
		lastErr = err
	}
	return nil, errors.Wrapf(lastErr, "no free port in %d-%d", port, port+portRange)
}

// Listen binds the server socket. addr is host:port of the first port to try.
func (sv *Server) Listen(addr string, portRange int) (net.Addr, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid port %q", portStr)
	}
	listener, err := listen(host, port, portRange)
	if err != nil {
		return nil, err
	}
	sv.mListener.Lock()
	sv.listener = listener
	sv.mListener.Unlock()
	return listener.Addr(), nil
}

// Serve accepts connections until ctx is done or Quit is called.
func (sv *Server) Serve(ctx context.Context) error {
	sv.mListener.Lock()
	listener := sv.listener
	sv.mListener.Unlock()
	if listener == nil {
		return errors.New("server is not listening")
	}

	go func() {
		select {
		case <-ctx.Done():
			sv.Quit()
		case <-sv.chQuit:
		}
	}()

	logger.Info("arenasv.Serve", zap.String("addr", listener.Addr().String()))
	for {
		tcpConn, err := listener.AcceptTCP()
		if err != nil {
			select {
			case <-sv.chQuit:
				return nil
			default:
			}
			logger.Error("failed to accept", zap.Error(err))
			continue
		}
		logger.Info("a new connection open", zap.String("addr", tcpConn.RemoteAddr().String()))
		go sv.NewPeer(tcpConn).serve()
	}
}

func (sv *Server) ListenAndServe(ctx context.Context, addr string, portRange int) error {
	if _, err := sv.Listen(addr, portRange); err != nil {
		return err
	}
	return sv.Serve(ctx)
}

// broadcast sends code to every session with a connection.
func (sv *Server) broadcast(code wire.Code) {
	sv.mtx.Lock()
	defer sv.mtx.Unlock()
	for i := range sv.sessions {
		s := &sv.sessions[i]
		if s.State != SessionUnused {
			s.SendCode(code)
		}
	}
}

func (sv *Server) closeAll() {
	sv.mListener.Lock()
	if sv.listener != nil {
		sv.listener.Close()
	}
	sv.mListener.Unlock()

	sv.mtx.Lock()
	var outs []Outbox
	for i := range sv.sessions {
		if out := sv.sessions[i].out; out != nil {
			outs = append(outs, out)
		}
	}
	sv.mtx.Unlock()

	for _, out := range outs {
		out.Close()
	}
}

func (sv *Server) shutdown(code wire.Code) bool {
	first := false
	sv.quitOnce.Do(func() {
		first = true
		close(sv.chQuit)
	})
	if !first {
		return false
	}
	sv.broadcast(code)
	time.Sleep(shutdownGrace)
	sv.closeAll()
	return true
}

// Quit tells every client the server is going away and closes all connections.
func (sv *Server) Quit() {
	if sv.shutdown(wire.CodeQuit) {
		logger.Info("server quit")
	}
}

// FatalShutdown ends the whole process after telling every client.
func (sv *Server) FatalShutdown() {
	if sv.shutdown(wire.CodeFatal) {
		logger.Warn("fatal shutdown")
		sv.exit(3)
	}
}
