package http

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	mfs "github.com/meshfs/meshfs/fs"
	"github.com/meshfs/meshfs/internal/memfs"
)

func startClient(t *testing.T) (*Client, *memfs.FS) {
	t.Helper()
	store := memfs.New()
	srv := httptest.NewServer(NewServer(store))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL), store
}

func clientPut(t *testing.T, c *Client, name, data string) {
	t.Helper()
	consumer, err := c.Upload(context.Background(), name)
	if err != nil {
		t.Fatalf("Upload %s: %v", name, err)
	}
	if _, err := consumer.Write([]byte(data)); err != nil {
		t.Fatalf("Write %s: %v", name, err)
	}
	if err := consumer.CloseWithError(nil); err != nil {
		t.Fatalf("CloseWithError %s: %v", name, err)
	}
}

func TestClientRoundTrip(t *testing.T) {
	client, store := startClient(t)
	clientPut(t, client, "dir/f.txt", "hello world")

	if got, ok := store.Contents("dir/f.txt"); !ok || string(got) != "hello world" {
		t.Fatalf("server store has %q, %v, want %q (names with slashes must survive routing)", got, ok, "hello world")
	}

	sup, err := client.Download(context.Background(), "dir/f.txt", 0, ^uint64(0))
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer sup.Close()
	got, err := io.ReadAll(sup)
	if err != nil || string(got) != "hello world" {
		t.Fatalf("Download = %q, %v, want %q, nil", got, err, "hello world")
	}
}

func TestClientDownloadRange(t *testing.T) {
	client, _ := startClient(t)
	clientPut(t, client, "f", "hello world")

	sup, err := client.Download(context.Background(), "f", 6, 5)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer sup.Close()
	got, _ := io.ReadAll(sup)
	if string(got) != "world" {
		t.Errorf("ranged download = %q, want %q", got, "world")
	}
}

func TestClientInfoMissingIsNotError(t *testing.T) {
	client, _ := startClient(t)
	_, ok, err := client.Info(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Info on a missing name must not error, got %v", err)
	}
	if ok {
		t.Fatal("Info on a missing name must report ok=false")
	}
}

func TestClientDownloadMissingIsFileNotFound(t *testing.T) {
	client, _ := startClient(t)
	_, err := client.Download(context.Background(), "nope", 0, ^uint64(0))
	if err == nil {
		t.Fatal("expected Download of a missing name to fail")
	}
	if !errors.Is(err, mfs.ErrFileNotFound) {
		t.Fatalf("expected FILE_NOT_FOUND, got %v", err)
	}
}

func TestClientDeleteAndList(t *testing.T) {
	client, _ := startClient(t)
	clientPut(t, client, "a.txt", "12345")
	clientPut(t, client, "b.log", "x")

	listing, err := client.List(context.Background(), "*.txt")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if md, ok := listing["a.txt"]; !ok || md.Size != 5 {
		t.Fatalf("List = %v, want a.txt with size 5", listing)
	}
	if _, ok := listing["b.log"]; ok {
		t.Errorf("List %v must not include b.log", listing)
	}

	if err := client.Delete(context.Background(), "a.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := client.Info(context.Background(), "a.txt"); ok {
		t.Error("a.txt must be gone after Delete")
	}
}

func TestClientMoveAll(t *testing.T) {
	client, store := startClient(t)
	clientPut(t, client, "src", "payload")

	if err := client.MoveAll(context.Background(), map[string]string{"src": "dst"}); err != nil {
		t.Fatalf("MoveAll: %v", err)
	}
	if _, ok := store.Contents("src"); ok {
		t.Error("src must no longer exist after MoveAll")
	}
	if got, ok := store.Contents("dst"); !ok || string(got) != "payload" {
		t.Fatalf("dst = %q, %v, want %q, true", got, ok, "payload")
	}
}
