package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/viant/mcpsession"
	"github.com/viant/mcpsession/codec/frame"
	"github.com/viant/mcpsession/dispatch"
	"github.com/viant/mcpsession/handler"
	"github.com/viant/mcpsession/mcp"
	"github.com/viant/mcpsession/session"
)

// syncBuffer lets the test goroutine poll the server's stdout concurrently
// with the ListenAndServe goroutine still writing to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

type echoHandler struct {
	handler.Base
}

func (echoHandler) Initialize(ctx context.Context, sessionID string, params mcp.InitializeParams) (mcp.InitializeResult, error) {
	return mcp.InitializeResult{
		ProtocolVersion: params.ProtocolVersion,
		ServerInfo:      mcp.Implementation{Name: "test-server", Version: "0.0.1"},
	}, nil
}

// TestListenAndServe_InitializeThenPing drives one stdio session end to end:
// a client writes a framed initialize request followed by a framed ping
// request, and the server is expected to write back two framed responses.
func TestListenAndServe_InitializeThenPing(t *testing.T) {
	pr, pw := io.Pipe()
	out := &syncBuffer{}

	registry := session.NewRegistry()
	d := dispatch.New(registry, dispatch.Config{SupportedVersions: []string{jsonrpc.ProtocolVersion}}, nil)
	srv := New(&echoHandler{}, registry, d, WithReader(pr), WithWriter(out))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	w := frame.NewWriter(pw)
	initParams, _ := json.Marshal(mcp.InitializeParams{ProtocolVersion: jsonrpc.ProtocolVersion})
	initReq, _ := json.Marshal(jsonrpc.Request{Id: 1, Jsonrpc: jsonrpc.Version, Method: "initialize", Params: initParams})
	if err := w.Write(initReq); err != nil {
		t.Fatalf("failed to write initialize frame: %v", err)
	}

	pingReq, _ := json.Marshal(jsonrpc.Request{Id: 2, Jsonrpc: jsonrpc.Version, Method: "ping"})
	if err := w.Write(pingReq); err != nil {
		t.Fatalf("failed to write ping frame: %v", err)
	}

	waitForFrames(t, out, 2)

	r := frame.NewReader(bytes.NewReader(out.Bytes()), nil)
	first, err := r.Next()
	if err != nil {
		t.Fatalf("failed to read first response frame: %v", err)
	}
	var initResp jsonrpc.Response
	if err := json.Unmarshal(first, &initResp); err != nil {
		t.Fatalf("failed to decode initialize response: %v", err)
	}
	if initResp.Error != nil {
		t.Fatalf("unexpected initialize error: %+v", initResp.Error)
	}

	second, err := r.Next()
	if err != nil {
		t.Fatalf("failed to read second response frame: %v", err)
	}
	var pingResp jsonrpc.Response
	if err := json.Unmarshal(second, &pingResp); err != nil {
		t.Fatalf("failed to decode ping response: %v", err)
	}
	if pingResp.Error != nil {
		t.Fatalf("unexpected ping error: %+v", pingResp.Error)
	}

	cancel()
	pw.Close()
	<-done
}

func waitForFrames(t *testing.T, out *syncBuffer, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if bytes.Count(out.Bytes(), []byte("Content-Length:")) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d response frames, got buffer: %q", n, out.Bytes())
}
