package sse

import (
	"bytes"
	"context"
	"testing"
)

func TestFrameUnnamed(t *testing.T) {
	got := FrameUnnamed([]byte(`{"a":1}`))
	want := "data: {\"a\":1}\n\n"
	if string(got) != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFrameNamed(t *testing.T) {
	got := FrameNamed("endpoint", []byte("/mcp/rpc/abc"))
	want := "event: endpoint\ndata: /mcp/rpc/abc\n\n"
	if string(got) != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildRPCPath(t *testing.T) {
	if got := BuildRPCPath("/mcp", "abc-123"); got != "/mcp/rpc/abc-123" {
		t.Fatalf("unexpected path: %s", got)
	}
}

func TestRPCSessionID(t *testing.T) {
	if got := RPCSessionID("/mcp", "/mcp/rpc/abc-123"); got != "abc-123" {
		t.Fatalf("expected abc-123, got %q", got)
	}
	if got := RPCSessionID("/mcp", "/other/path"); got != "" {
		t.Fatalf("expected empty string for a non-matching path, got %q", got)
	}
}

type flushingBuffer struct {
	bytes.Buffer
	flushes int
}

func (f *flushingBuffer) Flush() { f.flushes++ }

func TestWriter_WriteEndpoint(t *testing.T) {
	buf := &flushingBuffer{}
	w := NewWriter(buf)
	if err := w.WriteEndpoint("/mcp/rpc/abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "event: endpoint\ndata: /mcp/rpc/abc\n\n" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
	if buf.flushes != 1 {
		t.Fatalf("expected the writer to flush after the bootstrap chunk, got %d flushes", buf.flushes)
	}
}

func TestWriter_Send(t *testing.T) {
	buf := &flushingBuffer{}
	w := NewWriter(buf)

	if err := w.Send(context.Background(), "", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "data: {\"x\":1}\n\n" {
		t.Fatalf("unexpected unnamed-event output: %q", buf.String())
	}

	buf.Reset()
	if err := w.Send(context.Background(), "InitializeResult", []byte(`{"y":2}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "event: InitializeResult\ndata: {\"y\":2}\n\n" {
		t.Fatalf("unexpected named-event output: %q", buf.String())
	}
}
