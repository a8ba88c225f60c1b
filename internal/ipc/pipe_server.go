package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

const (
	// Covers an interactive bind, which waits for a key press on the server.
	defaultPipeConnTimeout = 30 * time.Second
	maxPipeRequestBytes    = 4 * 1024
	defaultMaxClients      = 8
	rejectReadTimeout      = time.Second
)

var connSlotAcquireTimeout = 5 * time.Second

// PipeServer receives control requests from a second eveswitch process.
type PipeServer struct {
	pipeName string
	executor CommandExecutor

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listener  net.Listener
	started   bool
	wg        sync.WaitGroup
	connSlots chan struct{}
}

// NewPipeServer constructs a PipeServer that hands every request to executor.
func NewPipeServer(pipeName string, executor CommandExecutor) *PipeServer {
	return newPipeServer(pipeName, executor, defaultMaxClients)
}

func newPipeServer(pipeName string, executor CommandExecutor, maxClients int) *PipeServer {
	ctx, cancel := context.WithCancel(context.Background())
	if pipeName == "" {
		pipeName = DefaultPipeName()
	}
	return &PipeServer{
		pipeName:  pipeName,
		executor:  executor,
		ctx:       ctx,
		cancel:    cancel,
		connSlots: make(chan struct{}, max(maxClients, 1)),
	}
}

// PipeName returns the listen pipe name.
func (s *PipeServer) PipeName() string {
	return s.pipeName
}

// Start begins listening on the pipe.
func (s *PipeServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("pipe server already started")
	}
	if s.executor == nil {
		return errors.New("pipe server requires a command executor")
	}

	listener, err := listenPipe(s.pipeName)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.pipeName, err)
	}

	s.listener = listener
	s.started = true
	s.wg.Go(s.acceptLoop)
	slog.Debug("[DEBUG-IPC] control pipe listening", "pipe", s.pipeName)
	return nil
}

// Stop gracefully shuts down the server.
func (s *PipeServer) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.cancel()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()

	if listener != nil {
		if err := listener.Close(); err != nil {
			slog.Warn("[WARN-IPC] failed to close pipe listener during shutdown", "error", err)
		}
	}
	s.wg.Wait()
	return nil
}

func (s *PipeServer) acceptLoop() {
	consecutiveErrors := 0
	for {
		s.mu.Lock()
		listener := s.listener
		s.mu.Unlock()
		if listener == nil {
			return
		}

		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			consecutiveErrors++
			if consecutiveErrors > 10 {
				slog.Warn("[WARN-IPC] accept loop: repeated failures, possible permanent error", "error", err, "count", consecutiveErrors)
				time.Sleep(500 * time.Millisecond)
			} else {
				slog.Debug("[DEBUG-IPC] accept error", "error", err)
			}
			continue
		}
		consecutiveErrors = 0

		if !s.acquireConnectionSlot() {
			s.rejectBusy(conn)
			continue
		}

		s.wg.Go(func() {
			defer s.releaseConnectionSlot()
			s.handleConnection(conn)
		})
	}
}

// handleConnection serves one request per connection.
func (s *PipeServer) handleConnection(conn net.Conn) {
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(defaultPipeConnTimeout)); err != nil {
		slog.Warn("[WARN-IPC] failed to set connection deadline", "error", err)
		return
	}

	reader := bufio.NewReaderSize(conn, maxPipeRequestBytes+1)
	rawReq, err := readDelimitedFrame(reader, maxPipeRequestBytes)
	if errors.Is(err, io.EOF) {
		slog.Debug("[DEBUG-IPC] client disconnected without sending data")
		return
	}
	if err != nil {
		s.writeResponse(conn, Errorf("invalid request: %v", err))
		return
	}

	req, err := decodeRequest(rawReq)
	if err != nil {
		s.writeResponse(conn, Errorf("invalid request: %v", err))
		return
	}

	slog.Debug("[DEBUG-IPC] received control request", "command", req.Command, "args", req.Args)
	resp := s.executor.Execute(req)
	if resp.ExitCode != 0 {
		slog.Debug("[DEBUG-IPC] control request failed", "command", req.Command, "exitCode", resp.ExitCode)
	}
	s.writeResponse(conn, resp)
}

// rejectBusy consumes the pending request so the client reads the reply
// instead of a reset connection.
func (s *PipeServer) rejectBusy(conn net.Conn) {
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			slog.Debug("[DEBUG-IPC] failed to close rejected connection", "error", closeErr)
		}
	}()
	if err := conn.SetDeadline(time.Now().Add(rejectReadTimeout)); err != nil {
		return
	}
	if _, err := readDelimitedFrame(bufio.NewReaderSize(conn, maxPipeRequestBytes+1), maxPipeRequestBytes); err != nil {
		slog.Debug("[DEBUG-IPC] rejected client sent no request", "error", err)
	}
	s.writeResponse(conn, Errorf("eveswitch is busy with another command, try again later"))
}

func (s *PipeServer) writeResponse(conn net.Conn, resp Response) {
	rawResp, err := encodeResponse(resp)
	if err != nil {
		slog.Warn("[WARN-IPC] failed to encode response", "error", err, "exitCode", resp.ExitCode)
		rawResp = []byte(`{"exit_code":1,"stderr":"internal encode error\n"}`)
	}
	if _, err := conn.Write(append(rawResp, '\n')); err != nil {
		slog.Debug("[DEBUG-IPC] failed to write response", "error", err)
	}
}

func (s *PipeServer) acquireConnectionSlot() bool {
	timer := time.NewTimer(connSlotAcquireTimeout)
	defer timer.Stop()
	select {
	case s.connSlots <- struct{}{}:
		return true
	case <-timer.C:
		slog.Warn("[WARN-IPC] all control connections busy, rejecting client")
		return false
	case <-s.ctx.Done():
		return false
	}
}

func (s *PipeServer) releaseConnectionSlot() {
	select {
	case <-s.connSlots:
	default:
		slog.Warn("[WARN-IPC] connection slot released twice")
	}
}
