package rpc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Transport moves opaque frames between the two endpoints of a channel. A
// transport is strictly FIFO in each direction: frames are received in the
// order the peer sent them. The channel's ordering and barrier guarantees
// rest on that property.
type Transport interface {
	// Send delivers one frame to the peer.
	Send(frame []byte) error

	// Receive blocks until the next frame from the peer is available.
	// Returns io.EOF after the transport is closed and drained.
	Receive() ([]byte, error)

	io.Closer
}

// Pipe creates a connected pair of in-process transports. Frames written on
// one side come out of the other in order. Used when host and extension
// endpoints share a process.
func Pipe() (Transport, Transport) {
	ab := make(chan []byte, pipeBuffer)
	ba := make(chan []byte, pipeBuffer)
	done := make(chan struct{})
	var once sync.Once
	closeFn := func() { once.Do(func() { close(done) }) }

	a := &pipeTransport{out: ab, in: ba, done: done, close: closeFn}
	b := &pipeTransport{out: ba, in: ab, done: done, close: closeFn}
	return a, b
}

const pipeBuffer = 256

type pipeTransport struct {
	out   chan []byte
	in    chan []byte
	done  chan struct{}
	close func()
}

func (p *pipeTransport) Send(frame []byte) error {
	select {
	case <-p.done:
		return io.ErrClosedPipe
	default:
	}
	select {
	case p.out <- frame:
		return nil
	case <-p.done:
		return io.ErrClosedPipe
	}
}

func (p *pipeTransport) Receive() ([]byte, error) {
	// Drain frames already in flight even after close.
	select {
	case frame := <-p.in:
		return frame, nil
	default:
	}
	select {
	case frame := <-p.in:
		return frame, nil
	case <-p.done:
		return nil, io.EOF
	}
}

func (p *pipeTransport) Close() error {
	p.close()
	return nil
}

// StreamTransport frames messages over any byte stream with Content-Length
// headers, so host and extension can sit in different OS processes connected
// by stdio pipes or a socket.
type StreamTransport struct {
	rwc    io.ReadWriteCloser
	reader *bufio.Reader
	mu     sync.Mutex // protects writes
}

// NewStreamTransport wraps a byte stream in Content-Length framing.
func NewStreamTransport(rwc io.ReadWriteCloser) *StreamTransport {
	return &StreamTransport{
		rwc:    rwc,
		reader: bufio.NewReaderSize(rwc, 64*1024),
	}
}

func (t *StreamTransport) Send(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(frame))
	if _, err := io.WriteString(t.rwc, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.rwc.Write(frame); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

func (t *StreamTransport) Receive() ([]byte, error) {
	contentLength := -1
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length: ") {
			val := strings.TrimPrefix(line, "Content-Length: ")
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("parse Content-Length %q: %w", val, err)
			}
			contentLength = n
		}
		// Other headers are ignored.
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (t *StreamTransport) Close() error {
	return t.rwc.Close()
}
