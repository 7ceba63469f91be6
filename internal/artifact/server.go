package artifact

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"ascbridge/internal/logging"
)

// Response is the outcome of resolving one request path.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Server answers requests from a Map.
type Server struct {
	files Map

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	group      *errgroup.Group
}

// NewServer returns a server for files. It does not listen until Listen.
func NewServer(files Map) *Server {
	return &Server{files: files}
}

// Respond resolves requestPath against the map. Hits carry permissive CORS
// headers and a Content-Type; misses are 404 with an empty body.
func (s *Server) Respond(requestPath string) Response {
	key := NormalizePath(requestPath)
	entry, ok := s.files[key]
	if !ok {
		return Response{Status: http.StatusNotFound, Header: http.Header{}}
	}

	mediaType, _ := ContentType(key)
	if entry.Textual {
		mediaType += "; charset=utf-8"
	}

	h := http.Header{}
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "*")
	h.Set("Content-Type", mediaType)
	return Response{Status: http.StatusOK, Header: h, Body: entry.Content}
}

// ServeHTTP adapts Respond to net/http.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := s.Respond(r.URL.Path)
	for k, v := range resp.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
	logging.ServeDebug("%s %s -> %d", r.Method, r.URL.Path, resp.Status)
}

// Listen binds addr before returning and serves in the background over
// HTTP/1.1 and cleartext HTTP/2. It returns the base URL.
func (s *Server) Listen(addr string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return "", errors.New("artifact server already listening")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{Handler: h2c.NewHandler(s, &http2.Server{})}
	s.group = &errgroup.Group{}
	srv := s.httpServer
	s.group.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	url := "http://" + ln.Addr().String()
	logging.Serve("Artifact server listening on %s (%d files)", url, len(s.files))
	return url, nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close shuts the server down and waits for the serve loop to exit.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	srv, group := s.httpServer, s.group
	s.httpServer, s.listener, s.group = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	if werr := group.Wait(); err == nil {
		err = werr
	}
	logging.ServeDebug("Artifact server closed")
	return err
}
