package frame

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"testing"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Write([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Write([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := NewReader(&buf, nil)
	first, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(first) != `{"jsonrpc":"2.0","id":1,"method":"ping"}` {
		t.Fatalf("unexpected first frame: %s", first)
	}

	second, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(second) != `{"jsonrpc":"2.0","method":"notifications/initialized"}` {
		t.Fatalf("unexpected second frame: %s", second)
	}
}

func TestReader_EOF(t *testing.T) {
	r := NewReader(strings.NewReader(""), nil)
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReader_ResynchronizesAfterMalformedHeader(t *testing.T) {
	payload := []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	var buf bytes.Buffer
	buf.WriteString("Not-A-Header\r\n\r\n")
	buf.WriteString("Content-Length: " + strconv.Itoa(len(payload)) + "\r\n\r\n")
	buf.Write(payload)

	r := NewReader(&buf, nil)
	got, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("expected resync to recover the valid frame, got %q", got)
	}
}

func TestReader_CaseInsensitiveHeaderName(t *testing.T) {
	payload := []byte(`{}`)
	var buf bytes.Buffer
	buf.WriteString("content-LENGTH: " + strconv.Itoa(len(payload)) + "\r\n\r\n")
	buf.Write(payload)

	r := NewReader(&buf, nil)
	got, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "{}" {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestWriter_Send(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Send(context.Background(), "ignored-event-name", []byte(`{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "Content-Length: 2") {
		t.Fatalf("expected a Content-Length header regardless of event name, got %q", buf.String())
	}
}

