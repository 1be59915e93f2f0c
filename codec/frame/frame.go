// Package frame implements the length-prefixed, LSP-style message framing
// the stdio transport uses (§4.2):
//
//	Content-Length: <N>\r\n
//	\r\n
//	<N bytes of UTF-8 JSON>
//
// Grounded on the Content-Length reader/writer pair in
// other_examples/675efcd6_troberti-clangd-query__go-internal-lsp-jsonrpc.go.go,
// restructured as a re-entrant buffered-pull reader per §9's "buffered pull
// that returns (payload, remaining_buffer); re-enter with the remainder",
// and taught to resynchronize on a malformed header instead of failing the
// stream.
package frame

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/viant/mcpsession"
)

const contentLengthHeader = "content-length"

// Reader pulls complete JSON payloads off an underlying io.Reader, one
// Content-Length frame at a time.
type Reader struct {
	br     *bufio.Reader
	logger jsonrpc.Logger
}

// NewReader wraps r. A nil logger defaults to jsonrpc.DefaultLogger.
func NewReader(r io.Reader, logger jsonrpc.Logger) *Reader {
	if logger == nil {
		logger = jsonrpc.DefaultLogger
	}
	return &Reader{br: bufio.NewReader(r), logger: logger}
}

// Next returns the next complete JSON payload, or io.EOF when the
// underlying reader is exhausted at a frame boundary. A malformed header
// resynchronizes at the next blank line instead of returning an error, so
// one corrupt frame never kills the stream; Next logs the resync and tries
// again.
func (r *Reader) Next() ([]byte, error) {
	for {
		length, err := r.readHeaders()
		if err != nil {
			return nil, err
		}
		if length < 0 {
			r.logger.Errorf("frame: resynchronized after malformed Content-Length header")
			continue
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(r.br, payload); err != nil {
			return nil, err
		}
		return payload, nil
	}
}

// readHeaders consumes one block of CRLF-terminated headers up to the
// blank line and returns the parsed Content-Length. It returns (-1, nil)
// when the block is malformed, having already resynchronized to the next
// blank line so the caller can retry.
func (r *Reader) readHeaders() (int, error) {
	length := -1
	malformed := false
	for {
		line, err := r.br.ReadString('\n')
		if err != nil {
			return 0, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if malformed {
				return -1, nil
			}
			if length < 0 {
				malformed = true
				continue
			}
			return length, nil
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			malformed = true
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(name), contentLengthHeader) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			malformed = true
			continue
		}
		length = n
	}
}

// Writer emits Content-Length-framed payloads to an underlying io.Writer.
// Writes are not inherently safe for concurrent use; callers serialize
// through a single owner (the engine.Manager's mutex) exactly as §5
// requires for the shared outbound stream.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write emits the header for payload followed by payload itself, then
// flushes if the underlying writer supports it.
func (w *Writer) Write(payload []byte) error {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(payload))
	if _, err := io.WriteString(w.w, header); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return err
	}
	if f, ok := w.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Send implements engine.Sender. Stdio has only one outbound channel, so
// event is ignored - every payload becomes the next Content-Length frame
// regardless of what an sse-oriented caller might have named it.
func (w *Writer) Send(ctx context.Context, event string, payload []byte) error {
	return w.Write(payload)
}
