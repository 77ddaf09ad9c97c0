package main

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"arenasv/arenasv/wire"
)

// maxOutbuf bounds the bytes queued for one client.
const maxOutbuf = wire.ServerMessageSize * 128

// Peer is one client connection. It owns the read loop that feeds the
// dispatcher and the write loop that drains the outgoing buffer.
type Peer struct {
	sv      *Server
	conn    net.Conn
	session *Session
	logger  *zap.Logger

	chWrite chan bool
	chDrain chan struct{}

	mOutbuf  sync.Mutex
	outbuf   []byte
	overflow bool
}

func (sv *Server) NewPeer(conn net.Conn) *Peer {
	return &Peer{
		sv:      sv,
		conn:    conn,
		logger:  logger.With(zap.String("addr", conn.RemoteAddr().String())),
		chWrite: make(chan bool, 1),
		chDrain: make(chan struct{}),
		outbuf:  make([]byte, 0, wire.ServerMessageSize*4),
	}
}

func (p *Peer) serve() {
	arenaConns.Add(1)
	defer arenaConns.Add(-1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	written := make(chan struct{})
	go func() {
		defer close(written)
		p.writeLoop(ctx, cancel)
	}()

	s, err := p.sv.AllocateSession(p)
	if err != nil {
		p.logger.Warn("session allocation failed", zap.Error(err))
		p.Send(wire.NewServerMessage(wire.CodeLoginFailServerLimits))
	} else {
		p.session = s
		p.readLoop(ctx)
		p.sv.ReleaseSession(s)
	}

	close(p.chDrain)
	<-written
	p.conn.Close()
	p.logger.Info("connection closed")
}

// Send queues msg for the write loop.
func (p *Peer) Send(msg *wire.ServerMessage) {
	buf, err := msg.MarshalBinary()
	if err != nil {
		p.logger.Error("failed to marshal", zap.Error(err), zap.Stringer("msg", msg))
		return
	}
	p.logger.Debug("server -> client", zap.Stringer("msg", msg))

	p.mOutbuf.Lock()
	if p.overflow || maxOutbuf < len(p.outbuf)+len(buf) {
		first := !p.overflow
		p.overflow = true
		p.mOutbuf.Unlock()
		if first {
			p.logger.Warn("client too slow, closing", zap.Int("pending", maxOutbuf/wire.ServerMessageSize))
			p.conn.Close()
		}
		return
	}
	p.outbuf = append(p.outbuf, buf...)
	p.mOutbuf.Unlock()
	select {
	case p.chWrite <- true:
	default:
	}
}

func (p *Peer) Close() error {
	return p.conn.Close()
}

func (p *Peer) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := wire.ReadClientMessage(p.conn)
		if err != nil {
			p.logger.Info("tcp read error", zap.Error(err))
			return
		}
		arenaMessageRecv.Add(1)
		p.logger.Debug("client -> server", zap.Stringer("msg", msg))

		if p.sv.dispatch(p.session, msg) < 0 {
			return
		}
	}
}

func (p *Peer) flush(buf []byte) ([]byte, error) {
	p.mOutbuf.Lock()
	buf = append(buf, p.outbuf...)
	p.outbuf = p.outbuf[:0]
	p.mOutbuf.Unlock()
	if len(buf) == 0 {
		return buf, nil
	}

	p.conn.SetWriteDeadline(time.Now().Add(time.Second * 10))
	err := wire.WriteFull(p.conn, buf)
	arenaMessageSent.Add(int64(len(buf) / wire.ServerMessageSize))
	return buf[:0], err
}

func (p *Peer) writeLoop(ctx context.Context, cancel func()) {
	defer cancel()

	buf := make([]byte, 0, wire.ServerMessageSize*4)
	var err error
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.chWrite:
			buf, err = p.flush(buf)
			if err != nil {
				p.logger.Info("tcp write error", zap.Error(err))
				p.conn.Close()
				return
			}
		case <-p.chDrain:
			if _, err = p.flush(buf); err != nil {
				p.logger.Info("tcp write error", zap.Error(err))
			}
			return
		}
	}
}
