// internal/gatewaysim/server.go
package gatewaysim

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tbrandon/mbserver"
)

// Mode changes how the simulator answers.
type Mode int32

const (
	// Normal answers every request with one write.
	Normal Mode = iota
	// Trickle writes the answer one byte at a time.
	Trickle
	// Silent reads requests and never answers.
	Silent
	// Corrupt flips one payload bit so the checksum fails.
	Corrupt
)

// Server is an RTU-over-TCP gateway simulator. Every request for
// (fc, start, count) is answered from a flat register table.
type Server struct {
	ln   net.Listener
	log  *logrus.Entry
	mode atomic.Int32

	mu   sync.Mutex
	regs []uint16

	requests atomic.Int64
	conns    sync.WaitGroup
	open     sync.Map // net.Conn -> struct{}
	closed   chan struct{}
}

// Listen starts a simulator on addr ("127.0.0.1:0" for an ephemeral port).
func Listen(addr string, regs []uint16, log *logrus.Entry) (*Server, error) {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		ln:     ln,
		log:    log.WithField("sim", ln.Addr().String()),
		regs:   append([]uint16(nil), regs...),
		closed: make(chan struct{}),
	}
	go s.accept()
	return s, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() *net.TCPAddr { return s.ln.Addr().(*net.TCPAddr) }

// SetMode switches the answer mode for subsequent requests.
func (s *Server) SetMode(m Mode) { s.mode.Store(int32(m)) }

// SetRegisters replaces the register table.
func (s *Server) SetRegisters(regs []uint16) {
	s.mu.Lock()
	s.regs = append([]uint16(nil), regs...)
	s.mu.Unlock()
}

// Requests returns the number of well-formed requests received.
func (s *Server) Requests() int64 { return s.requests.Load() }

// OpenConns returns the number of client connections still open.
func (s *Server) OpenConns() int {
	n := 0
	s.open.Range(func(_, _ any) bool { n++; return true })
	return n
}

// Close stops accepting, drops every client and waits for handlers.
func (s *Server) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
	}
	close(s.closed)
	err := s.ln.Close()
	s.open.Range(func(k, _ any) bool {
		_ = k.(net.Conn).Close()
		return true
	})
	s.conns.Wait()
	return err
}

func (s *Server) accept() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.closed:
			default:
				s.log.Warnf("accept failed: %v", err)
			}
			return
		}
		s.open.Store(conn, struct{}{})
		s.conns.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.conns.Done()
	defer s.open.Delete(conn)
	defer conn.Close()

	req := make([]byte, 8)
	for {
		if _, err := io.ReadFull(conn, req); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debugf("read: %v", err)
			}
			return
		}

		f, err := mbserver.NewRTUFrame(req)
		if err != nil {
			s.log.Debugf("bad request % x: %v", req, err)
			continue
		}
		s.requests.Add(1)

		mode := Mode(s.mode.Load())
		if mode == Silent {
			continue
		}

		resp := s.answer(f)
		if mode == Corrupt && len(resp) > 3 {
			resp[3] ^= 0x01
		}

		if mode == Trickle {
			for i := range resp {
				if _, err := conn.Write(resp[i : i+1]); err != nil {
					return
				}
				time.Sleep(time.Millisecond)
			}
			continue
		}
		if _, err := conn.Write(resp); err != nil {
			return
		}
	}
}

// answer builds the response to one decoded request frame.
func (s *Server) answer(f *mbserver.RTUFrame) []byte {
	data := f.GetData()
	start := binary.BigEndian.Uint16(data[0:2])
	count := binary.BigEndian.Uint16(data[2:4])

	payload := make([]byte, 1, 1+2*int(count))
	payload[0] = byte(2 * count)

	s.mu.Lock()
	for i := uint16(0); i < count; i++ {
		var v uint16
		if idx := int(start) + int(i); idx < len(s.regs) {
			v = s.regs[idx]
		}
		payload = binary.BigEndian.AppendUint16(payload, v)
	}
	s.mu.Unlock()

	resp := &mbserver.RTUFrame{
		Address:  f.Address,
		Function: f.Function,
	}
	resp.SetData(payload)
	return resp.Bytes()
}
