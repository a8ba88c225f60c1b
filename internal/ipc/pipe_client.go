package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	defaultPipeDialTimeout = 3 * time.Second
	// Longer than the server's bind capture wait, shorter than its
	// connection deadline.
	defaultPipeRWTimeout = 15 * time.Second
	maxPipeResponseBytes = 64 * 1024
)

// Send delivers one control request to the running eveswitch service and
// returns its reply. An empty pipeName means DefaultPipeName. Use
// IsConnectionError to tell "not running" apart from a failed exchange.
func Send(pipeName string, req Request) (Response, error) {
	if pipeName == "" {
		pipeName = DefaultPipeName()
	}
	conn, err := dialPipe(pipeName, defaultPipeDialTimeout)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()
	return roundTrip(conn, req, time.Now().Add(defaultPipeRWTimeout))
}

// roundTrip writes req as one JSON line and reads one JSON line back.
func roundTrip(conn net.Conn, req Request, deadline time.Time) (Response, error) {
	if err := conn.SetDeadline(deadline); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}
	frame, err := encodeRequest(req)
	if err != nil {
		return Response{}, err
	}
	if _, err := conn.Write(append(frame, '\n')); err != nil {
		return Response{}, fmt.Errorf("write request: %w", err)
	}

	raw, err := readDelimitedFrame(bufio.NewReaderSize(conn, maxPipeResponseBytes+1), maxPipeResponseBytes)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	resp, err := decodeResponse(raw)
	if err != nil {
		return Response{}, fmt.Errorf("invalid response: %w", err)
	}
	return resp, nil
}

// readDelimitedFrame reads up to the next newline. A final frame without
// one is accepted; an empty stream is io.EOF.
func readDelimitedFrame(reader *bufio.Reader, maxBytes int) ([]byte, error) {
	raw, err := reader.ReadSlice('\n')
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		return nil, fmt.Errorf("frame exceeds %d bytes", maxBytes)
	case errors.Is(err, io.EOF) && len(raw) == 0:
		return nil, io.EOF
	case errors.Is(err, io.EOF):
		return raw, nil
	case err != nil:
		return nil, err
	}
	return raw, nil
}

// IsConnectionError reports whether err means no service is listening, as
// opposed to a service that failed mid-request.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial" || opErr.Op == "open"
	}
	return isPipeNotFound(err)
}
