package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestStreamRoundTrip(t *testing.T) {
	consumer, supplier := NewStream(context.Background())
	go func() {
		_, _ = consumer.Write([]byte("hello "))
		_, _ = consumer.Write([]byte("world"))
		_ = consumer.CloseWithError(nil)
	}()
	got, err := io.ReadAll(supplier)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("got %q, want %q", got, "hello world")
	}
}

func TestStreamPropagatesFailure(t *testing.T) {
	consumer, supplier := NewStream(context.Background())
	boom := errors.New("boom")
	go func() {
		_, _ = consumer.Write([]byte("partial"))
		_ = consumer.CloseWithError(boom)
	}()
	_, err := io.ReadAll(supplier)
	if !errors.Is(err, boom) {
		t.Errorf("expected the supplier to surface the producer's CloseWithError cause, got %v", err)
	}
}

func TestCopy(t *testing.T) {
	src := ReaderSupplier(io.NopCloser(bytes.NewReader([]byte("payload"))))
	consumer, supplier := NewStream(context.Background())
	done := make(chan []byte, 1)
	go func() {
		b, _ := io.ReadAll(supplier)
		done <- b
	}()
	n, err := Copy(context.Background(), consumer, src)
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if n != int64(len("payload")) {
		t.Errorf("Copy returned n=%d, want %d", n, len("payload"))
	}
	if got := <-done; string(got) != "payload" {
		t.Errorf("got %q, want %q", got, "payload")
	}
}

func TestCopyCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := ReaderSupplier(io.NopCloser(bytes.NewReader([]byte("payload"))))
	consumer, supplier := NewStream(context.Background())
	go io.ReadAll(supplier) //nolint:errcheck
	_, err := Copy(ctx, consumer, src)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
