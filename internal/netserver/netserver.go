// Package netserver is the daemon's outer accept loop: the external
// collaborator deliberately kept out of the streaming core. It owns
// the one thing the core itself does not — the wire grammar, the
// per-connection verbosity flag, and the verbose prompt — and calls
// into internal/dispatcher for everything else, the way cmd/serve.go
// wires grpcServer.Serve around api.NewSerialServer in the teacher.
package netserver

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/openiio/iiod/internal/device"
	"github.com/openiio/iiod/internal/dispatcher"
	"github.com/openiio/iiod/internal/protocol"
)

// Server is the TCP front end. It holds no device state of its own —
// everything it does funnels through Dispatcher and Ctx.
type Server struct {
	Addr           string
	Dispatcher     *dispatcher.Dispatcher
	Ctx            device.Context
	MaxConnections int
	Logger         *log.Logger

	active int64
}

// New builds a Server. logger may be nil.
func New(addr string, d *dispatcher.Dispatcher, ctx device.Context, maxConnections int, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if maxConnections <= 0 {
		maxConnections = 64
	}
	return &Server{Addr: addr, Dispatcher: d, Ctx: ctx, MaxConnections: maxConnections, Logger: logger}
}

// Serve accepts connections on ln, a listener the caller has already
// opened (Serve does not listen on s.Addr itself), until the listener
// is closed (typically by the caller tearing down the net.Listener on
// context cancellation — matching the teacher's grpcServer.Serve /
// GracefulStop split in cmd/serve.go, but over a plain net.Listener
// since there is no grpc.Server to delegate shutdown to).
func (s *Server) Serve(ln net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}

		if atomic.LoadInt64(&s.active) >= int64(s.MaxConnections) {
			fmt.Fprintf(conn, "ERROR: too many connections\n")
			conn.Close()
			continue
		}

		atomic.AddInt64(&s.active, 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer atomic.AddInt64(&s.active, -1)
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	id := uuid.NewString()
	logger := s.Logger.With("conn", id, "remote", conn.RemoteAddr())
	logger.Info("client connected")
	defer logger.Info("client disconnected")

	client := &dispatcher.Client{Sink: conn, Ctx: s.Ctx}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !s.dispatch(client, conn, line, logger) {
			return
		}

		if client.Verbose {
			fmt.Fprint(conn, protocol.Prompt)
		}
	}
}

// dispatch executes one command line. It returns false when the
// connection should close, which is only for EXIT; write errors on
// conn are not inspected here.
func (s *Server) dispatch(client *dispatcher.Client, conn net.Conn, line string, logger *log.Logger) bool {
	fields := strings.Fields(line)
	cmd := strings.ToUpper(fields[0])

	switch cmd {
	case "EXIT":
		return false

	case "VERBOSE":
		if len(fields) < 2 {
			protocol.WriteStatus(conn, -22) // EINVAL
			return true
		}
		client.Verbose = strings.EqualFold(fields[1], "on")
		protocol.WriteStatus(conn, 0)
		return true

	case "READ":
		if len(fields) != 4 {
			protocol.WriteStatus(conn, -22)
			return true
		}
		deviceID := fields[1]
		nb, err1 := strconv.Atoi(fields[2])
		sampleSize, err2 := strconv.Atoi(fields[3])
		if err1 != nil || err2 != nil {
			protocol.WriteStatus(conn, -22)
			return true
		}

		n, err := s.Dispatcher.ReadDev(client, deviceID, nb, sampleSize)
		if err != nil {
			logger.Debug("read_dev failed", "device", deviceID, "error", err)
		}
		// A final status line always closes out READ, on top of
		// whatever in-stream framing the reader task already wrote for
		// this iteration, so a client blocked on the request's overall
		// status always gets one even after a mid-stream error line.
		protocol.WriteStatus(conn, n)
		return true

	case "READATTR":
		if len(fields) != 3 {
			protocol.WriteStatus(conn, -22)
			return true
		}
		if _, err := s.Dispatcher.ReadDevAttr(client, fields[1], fields[2]); err != nil {
			logger.Debug("read_dev_attr failed", "device", fields[1], "attr", fields[2], "error", err)
		}
		return true

	case "WRITEATTR":
		if len(fields) != 4 {
			protocol.WriteStatus(conn, -22)
			return true
		}
		value, err := hex.DecodeString(fields[3])
		if err != nil {
			protocol.WriteStatus(conn, -22)
			return true
		}
		if _, err := s.Dispatcher.WriteDevAttr(client, fields[1], fields[2], value); err != nil {
			logger.Debug("write_dev_attr failed", "device", fields[1], "attr", fields[2], "error", err)
		}
		return true

	default:
		protocol.WriteError(conn, fmt.Errorf("unknown command %q", fields[0]))
		return true
	}
}
