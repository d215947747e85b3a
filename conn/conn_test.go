package conn

import (
	"context"
	"testing"
	"time"

	"github.com/rutin-go/rutin/resp"
)

func TestReadFramesDrainsPipelinedBatch(t *testing.T) {
	server, client := NewFakePair()
	defer server.Close()
	defer client.Close()

	c := New(server)

	go func() {
		client.Write([]byte("*1\r\n$4\r\nPING\r\n*1\r\n$4\r\nPING\r\n"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frames, err := c.ReadFrames(ctx)
	if err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 pipelined frames, got %d", len(frames))
	}
}

func TestWriteFrameFlushesAtBatchZero(t *testing.T) {
	server, client := NewFakePair()
	defer server.Close()
	defer client.Close()

	c := New(server)

	go func() {
		client.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.ReadFrames(ctx); err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if c.BatchPending() != 1 {
		t.Fatalf("expected batch=1, got %d", c.BatchPending())
	}

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := client.Read(buf)
		done <- buf[:n]
	}()
	if err := c.WriteFrame(resp.SimpleString("PONG")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	select {
	case got := <-done:
		if string(got) != "+PONG\r\n" {
			t.Fatalf("got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flushed reply")
	}
	if c.BatchPending() != 0 {
		t.Fatalf("expected batch=0 after flush, got %d", c.BatchPending())
	}
}
