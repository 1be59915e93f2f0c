// Package stdio implements the framed-stdio transport adapter (C8, §4.8):
// one session for the life of the process, driven by the Content-Length
// framing of codec/frame. Grounded on transport/server/stdio/server.go's
// ListenAndServe/readLine goroutine-with-select cancellation pattern,
// adapted from line-delimited reads to codec/frame's Content-Length reader
// and wired through an engine.Manager instead of calling a handler
// dispatch function directly.
package stdio

import (
	"context"
	"io"
	"os"

	"github.com/viant/mcpsession"
	"github.com/viant/mcpsession/codec/frame"
	"github.com/viant/mcpsession/dispatch"
	"github.com/viant/mcpsession/engine"
	"github.com/viant/mcpsession/handler"
	"github.com/viant/mcpsession/session"
)

// Server drives a single stdio session end to end. Stdout carries framed
// JSON-RPC only - once ListenAndServe starts, nothing else may write to it;
// all logging routes to errWriter (stderr by default), per §4.8 and §9.
type Server struct {
	reader    io.Reader
	writer    io.Writer
	errWriter io.Writer
	handler   handler.Handler
	registry  *session.Registry

	dispatcher *dispatch.Dispatcher
	logger     jsonrpc.Logger
}

// Option configures a Server.
type Option func(*Server)

func WithReader(r io.Reader) Option     { return func(s *Server) { s.reader = r } }
func WithWriter(w io.Writer) Option     { return func(s *Server) { s.writer = w } }
func WithErrorWriter(w io.Writer) Option { return func(s *Server) { s.errWriter = w } }
func WithLogger(l jsonrpc.Logger) Option { return func(s *Server) { s.logger = l } }

// New creates a Server bound to h and registry. Stdin/stdout/stderr are the
// defaults; override with WithReader/WithWriter/WithErrorWriter for tests.
func New(h handler.Handler, registry *session.Registry, dispatcher *dispatch.Dispatcher, opts ...Option) *Server {
	s := &Server{
		reader:     os.Stdin,
		writer:     os.Stdout,
		errWriter:  os.Stderr,
		handler:    h,
		registry:   registry,
		dispatcher: dispatcher,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = jsonrpc.NewStdLogger(s.errWriter)
	}
	return s
}

// ListenAndServe mints the process's one session, registers it, and blocks
// reading framed requests from reader until EOF or ctx is cancelled. On
// return the session has been unregistered.
func (s *Server) ListenAndServe(ctx context.Context) error {
	sessionID := session.NewID()
	ownerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rec := session.NewRecord(sessionID, session.TransportStdio, ownerCtx)
	if err := s.registry.Register(rec); err != nil {
		return err
	}

	sender := frame.NewWriter(s.writer)
	mgr := engine.NewManager(sessionID, session.TransportStdio, s.handler, s.registry, s.dispatcher, sender, s.logger)
	mgr.Ready()
	defer mgr.Shutdown(ctx)

	reader := frame.NewReader(s.reader, s.logger)

	type pulled struct {
		payload []byte
		err     error
	}
	next := make(chan pulled, 1)
	pull := func() {
		payload, err := reader.Next()
		next <- pulled{payload: payload, err: err}
	}
	go pull()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p := <-next:
			if p.err != nil {
				if p.err == io.EOF {
					return nil
				}
				return p.err
			}
			mgr.HandleInbound(ctx, p.payload)
			go pull()
		}
	}
}
