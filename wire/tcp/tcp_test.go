package tcp

import (
	"bytes"
	"context"
	"net"
	"testing"

	"github.com/meshfs/meshfs/internal/memfs"
)

// startServer runs a Server backed by a fresh memfs.FS on an ephemeral
// local port and returns a dialed Client against it, cleaning both up on
// test completion.
func startServer(t *testing.T) (*Client, *memfs.FS) {
	t.Helper()
	store := memfs.New()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(store)
	go srv.Serve(ctx, ln) //nolint:errcheck

	client, err := Dial(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		cancel()
	})
	return client, store
}

func TestClientServerUploadDownloadRoundTrip(t *testing.T) {
	client, store := startServer(t)

	if err := client.Upload(context.Background(), "f", bytes.NewReader([]byte("hello world"))); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got, ok := store.Contents("f"); !ok || string(got) != "hello world" {
		t.Fatalf("server store has %q, %v, want %q", got, ok, "hello world")
	}

	var buf bytes.Buffer
	if err := client.Download(context.Background(), "f", 0, ^uint64(0), &buf); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if buf.String() != "hello world" {
		t.Errorf("downloaded %q, want %q", buf.String(), "hello world")
	}
}

func TestClientServerUploadSizedRejectsShortStream(t *testing.T) {
	client, _ := startServer(t)
	err := client.UploadSized(context.Background(), "f", 20, bytes.NewReader([]byte("too short")))
	if err == nil {
		t.Fatal("expected UploadSized to reject a stream shorter than the declared size")
	}
}

func TestClientServerDeleteInfoList(t *testing.T) {
	client, _ := startServer(t)

	if err := client.Upload(context.Background(), "f", bytes.NewReader([]byte("abc"))); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	md, ok, err := client.Info(context.Background(), "f")
	if err != nil || !ok || md.Size != 3 {
		t.Fatalf("Info = %+v, %v, %v, want size 3, true, nil", md, ok, err)
	}

	names, err := client.List(context.Background(), "*")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, ok := names["f"]; !ok {
		t.Errorf("List result %v missing f", names)
	}

	if err := client.Delete(context.Background(), "f"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := client.Info(context.Background(), "f"); err != nil || ok {
		t.Errorf("expected f gone after Delete, got ok=%v err=%v", ok, err)
	}
}

func TestClientServerPing(t *testing.T) {
	client, _ := startServer(t)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestClientServerCopyAndMove(t *testing.T) {
	client, store := startServer(t)
	if err := client.Upload(context.Background(), "src", bytes.NewReader([]byte("payload"))); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := client.Copy(context.Background(), "src", "dst"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if got, ok := store.Contents("dst"); !ok || string(got) != "payload" {
		t.Fatalf("dst = %q, %v, want %q, true", got, ok, "payload")
	}
	if _, ok := store.Contents("src"); !ok {
		t.Fatal("src must still exist after Copy")
	}

	if err := client.Move(context.Background(), "src", "moved"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, ok := store.Contents("src"); ok {
		t.Error("src must no longer exist after Move")
	}
	if got, ok := store.Contents("moved"); !ok || string(got) != "payload" {
		t.Fatalf("moved = %q, %v, want %q, true", got, ok, "payload")
	}
}
