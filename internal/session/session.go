// Package session owns one client connection for its lifetime,
// implementing the read/dispatch/write state machine of spec §4.G.
// The read and write sides run as a goroutine pair, grounded on the
// teacher's readPump/writePump split: one goroutine owns the socket
// read side and feeds decoded frames to the dispatcher, the other
// drains an outbound channel and batches writes.
package session

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/adred-codev/kvstore/internal/dispatch"
	"github.com/adred-codev/kvstore/internal/logging"
	"github.com/adred-codev/kvstore/internal/resp"
)

const (
	sendQueueSize  = 256
	readChunk      = 4096
	registerSize   = 10
)

// Session implements dispatch.Conn and drives one TCP connection
// through CONNECTED -> FRAMING -> DISPATCH -> WRITE -> FRAMING until
// EOF, a parse error, or a cooperative shutdown.
type Session struct {
	conn net.Conn
	addr string

	dispatcher  *dispatch.Dispatcher
	log         *logging.Sink
	idleTimeout time.Duration

	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}

	Register *OperationRegister
}

// New wraps conn in a Session bound to d. idleTimeout of 0 disables
// the idle-close behavior (spec §6's optional "timeout" option).
func New(conn net.Conn, d *dispatch.Dispatcher, log *logging.Sink, idleTimeout time.Duration) *Session {
	return &Session{
		conn:        conn,
		addr:        conn.RemoteAddr().String(),
		dispatcher:  d,
		log:         log,
		idleTimeout: idleTimeout,
		send:        make(chan []byte, sendQueueSize),
		done:        make(chan struct{}),
		Register:    NewOperationRegister(registerSize),
	}
}

// Addr identifies this connection for the pub/sub and monitor
// registries (dispatch.Conn).
func (s *Session) Addr() string { return s.addr }

// TrySend attempts a non-blocking enqueue of an already-encoded RESP
// frame (dispatch.Conn / pubsub.Sink). Used both for pub/sub pushes
// and for the session's own command replies; a full queue means the
// connection is not draining fast enough and the frame is dropped.
func (s *Session) TrySend(frame []byte) bool {
	select {
	case s.send <- frame:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

// Run drives the session to completion: it starts the write pump,
// reads and dispatches frames until EOF or an unrecoverable parse
// error, then tears down every piece of shared state this connection
// touched. Run blocks until the connection closes.
func (s *Session) Run() {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writePump()
	}()

	s.readLoop()

	s.closeOnce.Do(func() {
		close(s.done)
		close(s.send)
		s.conn.Close()
	})
	wg.Wait()
	s.dispatcher.Unregister(s)
}

// readLoop implements FRAMING: it accumulates bytes across reads so a
// frame split across TCP segments is preserved, then dispatches every
// complete frame it finds before reading more.
func (s *Session) readLoop() {
	var buf []byte
	chunk := make([]byte, readChunk)
	for {
		for {
			args, n, err := resp.DecodeRequest(buf)
			if err == nil {
				buf = buf[n:]
				s.handleFrame(args)
				continue
			}
			if errors.Is(err, resp.ErrIncomplete) {
				break
			}
			// Any other decode error is unrecoverable for this frame
			// boundary: the stream cannot be resynchronized, so the
			// connection is closed (spec §4.G).
			if s.log != nil {
				s.log.Error(err, "malformed request, closing connection", map[string]any{"addr": s.addr})
			}
			return
		}

		if s.idleTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		n, err := s.conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && s.log != nil {
				s.log.Error(err, "session read error", map[string]any{"addr": s.addr})
			}
			return
		}
	}
}

// handleFrame records the parsed command and runs it through the
// dispatcher, writing any reply to the send queue. A panic during a
// single command's dispatch is recovered here rather than in readLoop,
// so one bad command closes neither the loop nor the connection — only
// that command's reply is lost (spec §7: command errors are local to
// the request, the next command on the same connection proceeds
// normally).
func (s *Session) handleFrame(args [][]byte) {
	defer func() {
		if r := recover(); r != nil && s.log != nil {
			s.log.Panic(r, "command dispatch panic recovered", map[string]any{"addr": s.addr})
		}
	}()
	if len(args) > 0 {
		s.Register.Record(strings.ToLower(string(args[0])))
	}
	reply, ok := s.dispatcher.Dispatch(s, args)
	if !ok {
		return
	}
	s.writeReply(resp.Encode(reply))
}

// writeReply enqueues a command's own reply. Unlike TrySend's
// best-effort pub/sub delivery, a connection's own reply should not be
// silently dropped under ordinary backpressure, so this blocks on the
// queue (bounded by sendQueueSize) rather than failing immediately.
func (s *Session) writeReply(frame []byte) {
	select {
	case s.send <- frame:
	case <-s.done:
	}
}

// writePump drains the outbound queue and batches writes through a
// buffered writer, the way the teacher's writePump coalesces multiple
// queued messages into one flush.
func (s *Session) writePump() {
	w := bufio.NewWriter(s.conn)
	for frame := range s.send {
		if _, err := w.Write(frame); err != nil {
			return
		}
		n := len(s.send)
		for i := 0; i < n; i++ {
			if _, err := w.Write(<-s.send); err != nil {
				return
			}
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}
