package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"ascbridge/internal/artifact"
	"ascbridge/internal/logging"
)

// DevServerOptions configures a DevServer.
type DevServerOptions struct {
	Root         string // web root holding index.html
	Host         string // defaults to 127.0.0.1
	Port         int    // 0 picks an ephemeral port
	CacheEntries int    // file cache size, defaults to 256
	Plugins      []Plugin
}

// DevServer serves a web root from disk, reloads connected pages after a
// change, and forwards every change to the installed plugins.
type DevServer struct {
	opts  DevServerOptions
	root  string
	cache *lru.Cache[string, []byte]
	hub   *reloadHub
	mux   *http.ServeMux

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	watcher    *Watcher
	group      *errgroup.Group
	changes    sync.WaitGroup
}

// NewDevServer prepares a server; nothing runs until Start.
func NewDevServer(opts DevServerOptions) (*DevServer, error) {
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.CacheEntries <= 0 {
		opts.CacheEntries = 256
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve web root: %w", err)
	}
	cache, err := lru.New[string, []byte](opts.CacheEntries)
	if err != nil {
		return nil, err
	}

	d := &DevServer{opts: opts, root: root, cache: cache, hub: newReloadHub()}
	d.mux = http.NewServeMux()
	d.mux.Handle(ReloadPath, d.hub)
	d.mux.HandleFunc("/", d.serveFile)
	return d, nil
}

// Start runs every plugin's BuildStart, binds the listener, starts watching
// the web root plus plugin watch roots, and serves in the background.
func (d *DevServer) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener != nil {
		return errors.New("dev server already started")
	}

	if err := buildStart(ctx, d.opts.Plugins); err != nil {
		return err
	}

	addr := net.JoinHostPort(d.opts.Host, strconv.Itoa(d.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	watcher, err := NewWatcher(d.watchRoots(), d.onChange)
	if err != nil {
		ln.Close()
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// The watcher outlives the caller's ctx; Close stops it.
	if err := watcher.Start(context.WithoutCancel(ctx)); err != nil {
		ln.Close()
		return err
	}

	d.listener = ln
	d.watcher = watcher
	d.httpServer = &http.Server{Handler: h2c.NewHandler(d.mux, &http2.Server{})}
	d.group = &errgroup.Group{}
	srv := d.httpServer
	d.group.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	logging.Serve("Dev server listening on %s (root %s)", "http://"+ln.Addr().String(), d.root)
	return nil
}

// URL returns the base URL, or "" before Start.
func (d *DevServer) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return ""
	}
	return "http://" + d.listener.Addr().String()
}

// Addr returns the bound address, or "" before Start.
func (d *DevServer) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Close stops watching, waits for in-flight change handlers, disconnects
// reload clients and shuts the HTTP server down.
func (d *DevServer) Close(ctx context.Context) error {
	d.mu.Lock()
	srv, group, watcher := d.httpServer, d.group, d.watcher
	d.httpServer, d.group, d.watcher, d.listener = nil, nil, nil, nil
	d.mu.Unlock()

	if srv == nil {
		return nil
	}

	watcher.Stop()
	d.changes.Wait()
	d.hub.close()

	err := srv.Shutdown(ctx)
	if werr := group.Wait(); err == nil {
		err = werr
	}
	logging.ServeDebug("Dev server closed")
	return err
}

// ServeHTTP exposes the dev server handler, e.g. for httptest.
func (d *DevServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mux.ServeHTTP(w, r)
}

// Notify handles a changed path as if the watcher had reported it.
func (d *DevServer) Notify(ctx context.Context, path string) {
	d.onChange(ctx, path)
}

func (d *DevServer) watchRoots() []string {
	roots := []string{d.root}
	for _, p := range d.opts.Plugins {
		wt, ok := p.(WatchTargeter)
		if !ok {
			continue
		}
		for _, dir := range wt.WatchDirs() {
			abs, err := filepath.Abs(dir)
			if err != nil || isUnder(abs, d.root) {
				continue
			}
			roots = append(roots, abs)
		}
	}
	return roots
}

func (d *DevServer) onChange(ctx context.Context, changed string) {
	d.changes.Add(1)
	defer d.changes.Done()

	if abs, err := filepath.Abs(changed); err == nil {
		d.cache.Remove(abs)
	}

	for _, p := range d.opts.Plugins {
		if err := p.HandleFileChange(ctx, changed); err != nil {
			logging.WatchError("[plugin %s] %v", p.Name(), err)
		}
	}

	rel := changed
	if r, err := filepath.Rel(d.root, changed); err == nil && isUnder(changed, d.root) {
		rel = filepath.ToSlash(r)
	}
	n := d.hub.broadcast(ReloadMessage{Type: "update", Path: rel})
	logging.ServeDebug("Change %s pushed to %d clients", rel, n)
}

func (d *DevServer) serveFile(w http.ResponseWriter, r *http.Request) {
	name := artifact.NormalizePath(path.Clean("/" + r.URL.Path))
	file := filepath.Join(d.root, filepath.FromSlash(name))

	data, err := d.readFile(file)
	if err != nil {
		logging.ServeDebug("%s %s -> 404", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	mediaType, textual := artifact.ContentType(name)
	if textual {
		mediaType += "; charset=utf-8"
	}
	if mediaType == "text/html; charset=utf-8" {
		data = injectReloadClient(data)
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "*")
	h.Set("Cache-Control", "no-cache")
	h.Set("Content-Type", mediaType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	logging.ServeDebug("%s %s -> 200", r.Method, r.URL.Path)
}

func (d *DevServer) readFile(file string) ([]byte, error) {
	if data, ok := d.cache.Get(file); ok {
		return data, nil
	}
	info, err := os.Stat(file)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	d.cache.Add(file, data)
	return data, nil
}

// injectReloadClient places the reload script before </body>, or at the
// end when there is none. The input slice is not modified.
func injectReloadClient(html []byte) []byte {
	script := []byte(reloadClientScript)
	idx := bytes.LastIndex(bytes.ToLower(html), []byte("</body>"))
	out := make([]byte, 0, len(html)+len(script))
	if idx < 0 {
		out = append(out, html...)
		return append(out, script...)
	}
	out = append(out, html[:idx]...)
	out = append(out, script...)
	return append(out, html[idx:]...)
}

func isUnder(p, root string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
