package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mfs "github.com/meshfs/meshfs/fs"
	"github.com/meshfs/meshfs/internal/memfs"
)

func TestUploadDownloadRoundTrip(t *testing.T) {
	store := memfs.New()
	srv := httptest.NewServer(NewServer(store))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/upload/f", strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/download/f")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	got, _ := io.ReadAll(resp.Body)
	if string(got) != "hello world" {
		t.Errorf("downloaded %q, want %q", got, "hello world")
	}
}

func TestDownloadMissingReturnsFileNotFound(t *testing.T) {
	store := memfs.New()
	srv := httptest.NewServer(NewServer(store))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/download/nope")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.ErrorCode != mfs.FileNotFound.Code() {
		t.Errorf("errorCode = %d, want %d (FILE_NOT_FOUND)", body.ErrorCode, mfs.FileNotFound.Code())
	}
}

func TestInfoAndList(t *testing.T) {
	store := memfs.New()
	srv := httptest.NewServer(NewServer(store))
	defer srv.Close()

	put := func(name, data string) {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/upload/"+name, strings.NewReader(data))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("upload %s: %v", name, err)
		}
		resp.Body.Close()
	}
	put("a.txt", "12345")

	resp, err := http.Get(srv.URL + "/info/a.txt")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	defer resp.Body.Close()
	var md mfs.Metadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if md.Size != 5 {
		t.Errorf("info size = %d, want 5", md.Size)
	}

	resp, err = http.Get(srv.URL + "/list?glob=*.txt")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()
	var listing map[string]mfs.Metadata
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if _, ok := listing["a.txt"]; !ok {
		t.Errorf("list result %v missing a.txt", listing)
	}
}

func TestDeleteAllAndCopyAll(t *testing.T) {
	store := memfs.New()
	srv := httptest.NewServer(NewServer(store))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/upload/src", strings.NewReader("payload"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()

	body, _ := json.Marshal(map[string]string{"src": "dst"})
	resp, err = http.Post(srv.URL+"/copyAll", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("copyAll: %v", err)
	}
	resp.Body.Close()
	if got, ok := store.Contents("dst"); !ok || string(got) != "payload" {
		t.Fatalf("dst = %q, %v, want %q, true", got, ok, "payload")
	}

	names, _ := json.Marshal([]string{"src", "dst"})
	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/deleteAll", bytes.NewReader(names))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("deleteAll: %v", err)
	}
	resp.Body.Close()
	if _, ok := store.Contents("src"); ok {
		t.Error("src must be gone after deleteAll")
	}
	if _, ok := store.Contents("dst"); ok {
		t.Error("dst must be gone after deleteAll")
	}
}

func TestPing(t *testing.T) {
	store := memfs.New()
	srv := httptest.NewServer(NewServer(store))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ping")
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ping status = %d, want 200", resp.StatusCode)
	}
}
