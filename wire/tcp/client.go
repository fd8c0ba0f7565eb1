package tcp

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	mfs "github.com/meshfs/meshfs/fs"
)

// Client is a single-connection binary-protocol client. One request is
// in flight at a time per Client; callers wanting concurrency should
// pool Clients the way they would pool database connections.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial opens a Client connection to addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func responseErr(resp Response) error {
	if resp.Status == StatusOK {
		return nil
	}
	return mfs.NewError(mfs.KindFromCode(resp.ErrorCode), resp.ErrorMsg)
}

// Upload uploads the contents of src under name.
func (c *Client) Upload(ctx context.Context, name string, src io.Reader) error {
	return c.uploadLike(ctx, NewRequest(CmdUpload), name, src)
}

// UploadSized uploads exactly size bytes of src under name.
func (c *Client) UploadSized(ctx context.Context, name string, size uint64, src io.Reader) error {
	req := NewRequest(CmdUploadSized)
	req.Size = size
	req.HasSize = true
	return c.uploadLike(ctx, req, name, src)
}

// Append extends name at offset with the contents of src.
func (c *Client) Append(ctx context.Context, name string, offset uint64, src io.Reader) error {
	req := NewRequest(CmdAppend)
	req.Offset = offset
	return c.uploadLike(ctx, req, name, src)
}

func (c *Client) uploadLike(ctx context.Context, req Request, name string, src io.Reader) error {
	req.Name = name
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := WriteFrame(c.conn, req); err != nil {
		return err
	}
	var ack Response
	if err := ReadFrame(c.conn, &ack); err != nil {
		return err
	}
	if err := responseErr(ack); err != nil {
		return err
	}
	if err := WriteBody(c.conn, src); err != nil {
		return err
	}
	var final Response
	if err := ReadFrame(c.conn, &final); err != nil {
		return err
	}
	return responseErr(final)
}

// OpenDownload sends a Download request for [offset, offset+limit) of
// name and, once the server accepts it, returns a reader over the chunked
// response body. The connection's single request slot stays held until the
// returned reader is closed; Close drains any unread chunks so the next
// request on this connection starts frame-aligned.
func (c *Client) OpenDownload(ctx context.Context, name string, offset, limit uint64) (io.ReadCloser, error) {
	req := NewRequest(CmdDownload)
	req.Name = name
	req.Offset = offset
	req.Limit = limit
	req.HasSize = limit != ^uint64(0)
	c.mu.Lock()
	if err := WriteFrame(c.conn, req); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	var resp Response
	if err := ReadFrame(c.conn, &resp); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if err := responseErr(resp); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	return &downloadBody{c: c, r: NewBodyReader(c.conn)}, nil
}

type downloadBody struct {
	c      *Client
	r      io.Reader
	closed bool
}

func (d *downloadBody) Read(p []byte) (int, error) {
	return d.r.Read(p)
}

func (d *downloadBody) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	_, err := io.Copy(io.Discard, d.r)
	d.c.mu.Unlock()
	return err
}

// Download reads [offset, offset+limit) of name, writing the result
// into dst.
func (c *Client) Download(ctx context.Context, name string, offset, limit uint64, dst io.Writer) error {
	body, err := c.OpenDownload(ctx, name, offset, limit)
	if err != nil {
		return err
	}
	_, cerr := io.Copy(dst, body)
	if err := body.Close(); cerr == nil {
		cerr = err
	}
	return cerr
}

// Delete removes name.
func (c *Client) Delete(ctx context.Context, name string) error {
	req := NewRequest(CmdDelete)
	req.Name = name
	return c.roundTrip(req)
}

// DeleteAll removes every name in names.
func (c *Client) DeleteAll(ctx context.Context, names []string) error {
	req := NewRequest(CmdDeleteAll)
	req.Names = names
	return c.roundTrip(req)
}

// Copy copies src to dst.
func (c *Client) Copy(ctx context.Context, src, dst string) error {
	req := NewRequest(CmdCopy)
	req.Name = src
	req.Pairs = map[string]string{src: dst}
	return c.roundTrip(req)
}

// CopyAll copies every src->dst pair in srcToDst.
func (c *Client) CopyAll(ctx context.Context, srcToDst map[string]string) error {
	req := NewRequest(CmdCopyAll)
	req.Pairs = srcToDst
	return c.roundTrip(req)
}

// Move moves src to dst.
func (c *Client) Move(ctx context.Context, src, dst string) error {
	req := NewRequest(CmdMove)
	req.Name = src
	req.Pairs = map[string]string{src: dst}
	return c.roundTrip(req)
}

// MoveAll moves every src->dst pair in srcToDst.
func (c *Client) MoveAll(ctx context.Context, srcToDst map[string]string) error {
	req := NewRequest(CmdMoveAll)
	req.Pairs = srcToDst
	return c.roundTrip(req)
}

// List resolves glob against the server and returns the matching names.
func (c *Client) List(ctx context.Context, glob string) (map[string]mfs.Metadata, error) {
	req := NewRequest(CmdList)
	req.Glob = glob
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, err := c.sendLocked(req)
	if err != nil {
		return nil, err
	}
	return fromWireMetadataMap(resp.Listing), nil
}

// Info returns the Metadata for name, or ok=false if it doesn't exist.
func (c *Client) Info(ctx context.Context, name string) (mfs.Metadata, bool, error) {
	req := NewRequest(CmdInfo)
	req.Name = name
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, err := c.sendLocked(req)
	if err != nil {
		return mfs.Metadata{}, false, err
	}
	return fromWireMetadata(resp.Info), resp.InfoFound, nil
}

// InfoAll is a bulk Info over names.
func (c *Client) InfoAll(ctx context.Context, names []string) (map[string]mfs.Metadata, error) {
	req := NewRequest(CmdInfoAll)
	req.Names = names
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, err := c.sendLocked(req)
	if err != nil {
		return nil, err
	}
	return fromWireMetadataMap(resp.InfoAll), nil
}

// Ping checks server liveness.
func (c *Client) Ping(ctx context.Context) error {
	return c.roundTrip(NewRequest(CmdPing))
}

func (c *Client) roundTrip(req Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.sendLocked(req)
	return err
}

func (c *Client) sendLocked(req Request) (Response, error) {
	if err := WriteFrame(c.conn, req); err != nil {
		return Response{}, err
	}
	var resp Response
	if err := ReadFrame(c.conn, &resp); err != nil {
		return Response{}, err
	}
	if err := responseErr(resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

func fromWireMetadata(md Metadata) mfs.Metadata {
	return mfs.Metadata{Size: md.Size, ModTime: md.ModTime}
}

func fromWireMetadataMap(in map[string]Metadata) map[string]mfs.Metadata {
	out := make(map[string]mfs.Metadata, len(in))
	for k, v := range in {
		out[k] = fromWireMetadata(v)
	}
	return out
}
