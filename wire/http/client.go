package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	mfs "github.com/meshfs/meshfs/fs"
)

// Client is an fs.FS over the REST surface, the HTTP twin of
// tcp.RemoteFS: a partition reachable only over HTTP can sit behind
// partition.Partition.FS the same way a binary-protocol one does.
type Client struct {
	base string
	hc   *http.Client
}

// NewClient builds a Client against base (scheme://host:port, no
// trailing slash required). The underlying http.Client handles
// connection pooling per endpoint.
func NewClient(base string) *Client {
	return &Client{base: strings.TrimRight(base, "/"), hc: http.DefaultClient}
}

func (c *Client) url(path string, query url.Values) string {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// decodeError turns a non-2xx response into the error it carries,
// reconstructing application errors from the JSON error code so
// errors.Is works across the wire.
func decodeError(resp *http.Response) error {
	defer resp.Body.Close()
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("http status %d", resp.StatusCode)
	}
	return mfs.NewError(mfs.KindFromCode(body.ErrorCode), body.Message)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), body)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, decodeError(resp)
	}
	return resp, nil
}

// roundTrip is do for calls whose success response carries no body.
func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body io.Reader) error {
	resp, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) Upload(ctx context.Context, name string) (mfs.Consumer, error) {
	return c.uploadLike(ctx, "/upload/"+name, nil, -1)
}

func (c *Client) UploadSized(ctx context.Context, name string, size uint64) (mfs.Consumer, error) {
	return c.uploadLike(ctx, "/upload/"+name, nil, int64(size))
}

func (c *Client) Append(ctx context.Context, name string, offset uint64) (mfs.Consumer, error) {
	query := url.Values{"offset": {strconv.FormatUint(offset, 10)}}
	return c.uploadLike(ctx, "/append/"+name, query, -1)
}

// uploadLike streams the returned Consumer's bytes as the POST body; the
// Consumer's CloseWithError reports the server's commit outcome, so the
// ack-on-eos contract survives the HTTP hop.
func (c *Client) uploadLike(ctx context.Context, path string, query url.Values, size int64) (mfs.Consumer, error) {
	consumer, supplier := mfs.NewStream(ctx)
	done := make(chan error, 1)
	go func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path, query), supplier)
		if err != nil {
			done <- err
			return
		}
		if size >= 0 {
			req.ContentLength = size
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			done <- err
			return
		}
		if resp.StatusCode != http.StatusOK {
			done <- decodeError(resp)
			return
		}
		done <- resp.Body.Close()
	}()
	return &httpUploadConsumer{Consumer: consumer, done: done}, nil
}

type httpUploadConsumer struct {
	mfs.Consumer
	done chan error
	once sync.Once
	res  error
}

func (u *httpUploadConsumer) CloseWithError(err error) error {
	u.once.Do(func() {
		cerr := u.Consumer.CloseWithError(err)
		u.res = <-u.done
		if u.res == nil && err == nil && cerr != nil {
			u.res = cerr
		}
	})
	return u.res
}

func (c *Client) Download(ctx context.Context, name string, offset, limit uint64) (mfs.Supplier, error) {
	query := url.Values{}
	if offset > 0 {
		query.Set("offset", strconv.FormatUint(offset, 10))
	}
	if limit != ^uint64(0) {
		query.Set("limit", strconv.FormatUint(limit, 10))
	}
	resp, err := c.do(ctx, http.MethodGet, "/download/"+name, query, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) Delete(ctx context.Context, name string) error {
	return c.roundTrip(ctx, http.MethodDelete, "/delete/"+name, nil, nil)
}

func (c *Client) DeleteAll(ctx context.Context, names []string) error {
	body, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return c.roundTrip(ctx, http.MethodPost, "/deleteAll", nil, bytes.NewReader(body))
}

func (c *Client) CopyAll(ctx context.Context, srcToDst map[string]string) error {
	return c.bulkMap(ctx, "/copyAll", srcToDst)
}

func (c *Client) MoveAll(ctx context.Context, srcToDst map[string]string) error {
	return c.bulkMap(ctx, "/moveAll", srcToDst)
}

func (c *Client) bulkMap(ctx context.Context, path string, srcToDst map[string]string) error {
	body, err := json.Marshal(srcToDst)
	if err != nil {
		return err
	}
	return c.roundTrip(ctx, http.MethodPost, path, nil, bytes.NewReader(body))
}

func (c *Client) Copy(ctx context.Context, src, dst string) error {
	query := url.Values{"name": {src}, "target": {dst}}
	return c.roundTrip(ctx, http.MethodPost, "/copy", query, nil)
}

func (c *Client) Move(ctx context.Context, src, dst string) error {
	query := url.Values{"name": {src}, "target": {dst}}
	return c.roundTrip(ctx, http.MethodPost, "/move", query, nil)
}

func (c *Client) List(ctx context.Context, glob string) (map[string]mfs.Metadata, error) {
	query := url.Values{"glob": {glob}}
	resp, err := c.do(ctx, http.MethodGet, "/list", query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out map[string]mfs.Metadata
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Info(ctx context.Context, name string) (mfs.Metadata, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/info/"+name, nil, nil)
	if err != nil {
		// The server reports a missing name as a FILE_NOT_FOUND error;
		// the contract wants (zero, false, nil) instead.
		if errors.Is(err, mfs.ErrFileNotFound) {
			return mfs.Metadata{}, false, nil
		}
		return mfs.Metadata{}, false, err
	}
	defer resp.Body.Close()
	var md mfs.Metadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return mfs.Metadata{}, false, err
	}
	return md, true, nil
}

func (c *Client) InfoAll(ctx context.Context, names []string) (map[string]mfs.Metadata, error) {
	body, err := json.Marshal(names)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/infoAll", nil, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out map[string]mfs.Metadata
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.roundTrip(ctx, http.MethodGet, "/ping", nil, nil)
}

var _ mfs.FS = (*Client)(nil)
