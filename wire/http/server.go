// Package http is the REST wire adapter: one route per fs.FS operation,
// JSON for metadata/errors, raw bodies for byte streams.
package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	mfs "github.com/meshfs/meshfs/fs"
)

// Server adapts an fs.FS to an HTTP REST surface.
type Server struct {
	fsys   mfs.FS
	router chi.Router
}

// NewServer builds a Server over fsys and registers every route.
func NewServer(fsys mfs.FS) *Server {
	s := &Server{fsys: fsys, router: chi.NewRouter()}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Post("/upload", s.handleUpload(""))
	s.router.Post("/upload/*", s.handleUploadNamed)
	s.router.Post("/append/*", s.handleAppend)
	s.router.Get("/download/*", s.handleDownload)
	s.router.Get("/list", s.handleList)
	s.router.Get("/info/*", s.handleInfo)
	s.router.Post("/infoAll", s.handleInfoAll)
	s.router.Get("/ping", s.handlePing)
	s.router.Post("/move", s.handleMove)
	s.router.Post("/moveAll", s.handleMoveAll)
	s.router.Post("/copy", s.handleCopy)
	s.router.Post("/copyAll", s.handleCopyAll)
	s.router.Delete("/delete/*", s.handleDelete)
	s.router.Post("/deleteAll", s.handleDeleteAll)
}

func (s *Server) handleUpload(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.upload(w, r, name)
	}
}

// Named routes use a chi wildcard rather than a {name} segment because
// names are path-like and may contain "/".
func (s *Server) handleUploadNamed(w http.ResponseWriter, r *http.Request) {
	s.upload(w, r, chi.URLParam(r, "*"))
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request, name string) {
	if name == "" {
		name = r.URL.Query().Get("name")
	}
	ctx := r.Context()
	var consumer mfs.Consumer
	var err error
	if sizeStr := r.Header.Get("Content-Length"); sizeStr != "" && r.ContentLength >= 0 {
		consumer, err = s.fsys.UploadSized(ctx, name, uint64(r.ContentLength))
	} else {
		consumer, err = s.fsys.Upload(ctx, name)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := mfs.Copy(ctx, consumer, mfs.ReaderSupplier(r.Body)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	offset, _ := strconv.ParseUint(r.URL.Query().Get("offset"), 10, 64)
	consumer, err := s.fsys.Append(r.Context(), name, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := mfs.Copy(r.Context(), consumer, mfs.ReaderSupplier(r.Body)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	offset, limit := parseRange(r)
	supplier, err := s.fsys.Download(r.Context(), name, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	defer supplier.Close()
	if r.Header.Get("Range") != "" {
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_, _ = io.Copy(w, supplier)
}

// parseRange resolves offset/limit from either ?offset&limit or a
// standard "bytes=N-M" Range header, preferring the explicit query
// params when both are present.
func parseRange(r *http.Request) (offset, limit uint64) {
	limit = ^uint64(0)
	if h := r.Header.Get("Range"); strings.HasPrefix(h, "bytes=") {
		spec := strings.TrimPrefix(h, "bytes=")
		if i := strings.IndexByte(spec, '-'); i >= 0 {
			if v, err := strconv.ParseUint(spec[:i], 10, 64); err == nil {
				offset = v
			}
			if end := spec[i+1:]; end != "" {
				if v, err := strconv.ParseUint(end, 10, 64); err == nil && v >= offset {
					limit = v - offset + 1
				}
			}
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		offset, _ = strconv.ParseUint(o, 10, 64)
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, _ = strconv.ParseUint(l, 10, 64)
	}
	return offset, limit
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	glob := r.URL.Query().Get("glob")
	listing, err := s.fsys.List(r.Context(), glob)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	md, ok, err := s.fsys.Info(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, mfs.ErrFileNotFound)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func (s *Server) handleInfoAll(w http.ResponseWriter, r *http.Request) {
	var names []string
	if err := json.NewDecoder(r.Body).Decode(&names); err != nil {
		writeError(w, mfs.NewError(mfs.BadPath, err.Error()))
		return
	}
	out, err := s.fsys.InfoAll(r.Context(), names)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if err := s.fsys.Ping(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	name, target := r.URL.Query().Get("name"), r.URL.Query().Get("target")
	if err := s.fsys.Move(r.Context(), name, target); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMoveAll(w http.ResponseWriter, r *http.Request) {
	s.bulkMap(w, r, s.fsys.MoveAll)
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	name, target := r.URL.Query().Get("name"), r.URL.Query().Get("target")
	if err := s.fsys.Copy(r.Context(), name, target); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCopyAll(w http.ResponseWriter, r *http.Request) {
	s.bulkMap(w, r, s.fsys.CopyAll)
}

// bulkMap decodes a JSON {src: dst} body and runs op over it, the shared
// shape of /moveAll and /copyAll.
func (s *Server) bulkMap(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, srcToDst map[string]string) error) {
	var srcToDst map[string]string
	if err := json.NewDecoder(r.Body).Decode(&srcToDst); err != nil {
		writeError(w, mfs.NewError(mfs.BadPath, err.Error()))
		return
	}
	if err := op(r.Context(), srcToDst); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if err := s.fsys.Delete(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	var names []string
	if err := json.NewDecoder(r.Body).Decode(&names); err != nil {
		writeError(w, mfs.NewError(mfs.BadPath, err.Error()))
		return
	}
	if err := s.fsys.DeleteAll(r.Context(), names); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON shape of a failed call: status 500 plus the
// stable error code the TCP protocol also uses.
type errorBody struct {
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := mfs.Unknown
	if appErr, ok := asAppError(err); ok {
		kind = appErr.Kind
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{ErrorCode: kind.Code(), Message: err.Error()})
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
