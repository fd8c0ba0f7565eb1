package tcp

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/google/uuid"

	mfs "github.com/meshfs/meshfs/fs"
)

// Server accepts connections and dispatches each Request frame against
// an fs.FS, the binary-protocol twin of wire/http.Server.
type Server struct {
	fsys mfs.FS
}

// NewServer builds a Server over fsys.
func NewServer(fsys mfs.FS) *Server {
	return &Server{fsys: fsys}
}

// Serve accepts connections on ln until ctx is cancelled or ln.Accept
// fails. Each connection is handled in its own goroutine and may carry
// many sequential requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return err
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	for {
		var req Request
		if err := ReadFrame(conn, &req); err != nil {
			if err != io.EOF {
				mfs.Debugf("tcp", "read request frame: %v", err)
			}
			return
		}
		if err := s.dispatch(ctx, conn, req); err != nil {
			mfs.Debugf("tcp", "dispatch %v (id=%s): %v", req.Kind, req.ID, err)
			return
		}
	}
}

// dispatch runs one request to completion, including any streamed body,
// and writes the Response frame (and, for Download, the body that
// follows it).
func (s *Server) dispatch(ctx context.Context, conn net.Conn, req Request) error {
	switch req.Kind {
	case CmdUpload, CmdUploadSized:
		return s.dispatchUpload(ctx, conn, req)
	case CmdAppend:
		return s.dispatchAppend(ctx, conn, req)
	case CmdDownload:
		return s.dispatchDownload(ctx, conn, req)
	case CmdDelete:
		err := s.fsys.Delete(ctx, req.Name)
		return s.respondEmpty(conn, req.ID, err)
	case CmdDeleteAll:
		err := s.fsys.DeleteAll(ctx, req.Names)
		return s.respondEmpty(conn, req.ID, err)
	case CmdCopy:
		target := req.Pairs[req.Name]
		err := s.fsys.Copy(ctx, req.Name, target)
		return s.respondEmpty(conn, req.ID, err)
	case CmdCopyAll:
		err := s.fsys.CopyAll(ctx, req.Pairs)
		return s.respondEmpty(conn, req.ID, err)
	case CmdMove:
		target := req.Pairs[req.Name]
		err := s.fsys.Move(ctx, req.Name, target)
		return s.respondEmpty(conn, req.ID, err)
	case CmdMoveAll:
		err := s.fsys.MoveAll(ctx, req.Pairs)
		return s.respondEmpty(conn, req.ID, err)
	case CmdList:
		return s.dispatchList(ctx, conn, req)
	case CmdInfo:
		return s.dispatchInfo(ctx, conn, req)
	case CmdInfoAll:
		return s.dispatchInfoAll(ctx, conn, req)
	case CmdPing:
		err := s.fsys.Ping(ctx)
		return s.respondEmpty(conn, req.ID, err)
	default:
		return s.respondEmpty(conn, req.ID, errors.New("unknown command"))
	}
}

// dispatchUpload accepts the request, then reads the chunked body that
// follows from conn straight into the Consumer, and finally writes a
// second Response frame carrying the commit outcome. Two Response
// frames per upload: one "accepted, send your body" ack, one "committed
// (or failed)" result.
func (s *Server) dispatchUpload(ctx context.Context, conn net.Conn, req Request) error {
	var consumer mfs.Consumer
	var err error
	if req.Kind == CmdUploadSized {
		consumer, err = s.fsys.UploadSized(ctx, req.Name, req.Size)
	} else {
		consumer, err = s.fsys.Upload(ctx, req.Name)
	}
	if err != nil {
		return s.respondEmpty(conn, req.ID, err)
	}
	if err := WriteFrame(conn, newResponse(req.ID, nil)); err != nil {
		return err
	}
	return s.drainBody(ctx, conn, consumer, req.ID)
}

func (s *Server) dispatchAppend(ctx context.Context, conn net.Conn, req Request) error {
	consumer, err := s.fsys.Append(ctx, req.Name, req.Offset)
	if err != nil {
		return s.respondEmpty(conn, req.ID, err)
	}
	if err := WriteFrame(conn, newResponse(req.ID, nil)); err != nil {
		return err
	}
	return s.drainBody(ctx, conn, consumer, req.ID)
}

// drainBody streams the chunked body following a request header into
// consumer and writes the commit Response. If the consumer fails before
// the body is exhausted, the remaining chunks are still read off conn so
// the next request on this persistent connection starts frame-aligned.
func (s *Server) drainBody(ctx context.Context, conn net.Conn, consumer mfs.Consumer, id uuid.UUID) error {
	body := NewBodyReader(conn)
	_, err := mfs.Copy(ctx, consumer, mfs.ReaderSupplier(io.NopCloser(body)))
	if err != nil {
		if _, derr := io.Copy(io.Discard, body); derr != nil {
			return derr
		}
	}
	return WriteFrame(conn, newResponse(id, err))
}

func (s *Server) dispatchDownload(ctx context.Context, conn net.Conn, req Request) error {
	limit := req.Limit
	if !req.HasSize {
		limit = ^uint64(0)
	}
	supplier, err := s.fsys.Download(ctx, req.Name, req.Offset, limit)
	if err != nil {
		return s.respondEmpty(conn, req.ID, err)
	}
	defer supplier.Close()
	resp := newResponse(req.ID, nil)
	if err := WriteFrame(conn, resp); err != nil {
		return err
	}
	return WriteBody(conn, supplier)
}

func (s *Server) dispatchList(ctx context.Context, conn net.Conn, req Request) error {
	listing, err := s.fsys.List(ctx, req.Glob)
	if err != nil {
		return s.respondEmpty(conn, req.ID, err)
	}
	resp := newResponse(req.ID, nil)
	resp.Listing = toWireMetadataMap(listing)
	return WriteFrame(conn, resp)
}

func (s *Server) dispatchInfo(ctx context.Context, conn net.Conn, req Request) error {
	md, ok, err := s.fsys.Info(ctx, req.Name)
	if err != nil {
		return s.respondEmpty(conn, req.ID, err)
	}
	resp := newResponse(req.ID, nil)
	resp.InfoFound = ok
	if ok {
		resp.Info = toWireMetadata(md)
	}
	return WriteFrame(conn, resp)
}

func (s *Server) dispatchInfoAll(ctx context.Context, conn net.Conn, req Request) error {
	out, err := s.fsys.InfoAll(ctx, req.Names)
	if err != nil {
		return s.respondEmpty(conn, req.ID, err)
	}
	resp := newResponse(req.ID, nil)
	resp.InfoAll = toWireMetadataMap(out)
	return WriteFrame(conn, resp)
}

func (s *Server) respondEmpty(conn net.Conn, id uuid.UUID, err error) error {
	return WriteFrame(conn, newResponse(id, err))
}

func newResponse(id uuid.UUID, err error) Response {
	resp := Response{ID: id, Status: StatusOK}
	if err != nil {
		resp.Status = StatusError
		resp.ErrorMsg = err.Error()
		if appErr, ok := asAppError(err); ok {
			resp.ErrorCode = appErr.Kind.Code()
		} else {
			resp.ErrorCode = mfs.Unknown.Code()
		}
	}
	return resp
}

func asAppError(err error) (*mfs.Error, bool) {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if appErr, ok := err.(*mfs.Error); ok {
			return appErr, true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

func toWireMetadata(md mfs.Metadata) Metadata {
	return Metadata{Size: md.Size, ModTime: md.ModTime}
}

func toWireMetadataMap(in map[string]mfs.Metadata) map[string]Metadata {
	out := make(map[string]Metadata, len(in))
	for k, v := range in {
		out[k] = toWireMetadata(v)
	}
	return out
}
