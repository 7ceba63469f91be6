package host

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"

	"ascbridge/internal/testutil"
)

func startDevServer(t *testing.T, root string, plugins ...Plugin) *DevServer {
	t.Helper()
	d, err := NewDevServer(DevServerOptions{Root: root, Plugins: plugins})
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, d.Close(ctx))
	})
	return d
}

func get(t *testing.T, url string) (int, http.Header, string) {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	defer client.CloseIdleConnections()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header, string(body)
}

func TestDevServerRunsBuildStartAndServes(t *testing.T) {
	root := testutil.NewWebRoot(t, nil)
	plugin := &fakePlugin{}
	d := startDevServer(t, root, plugin)

	assert.Equal(t, 1, plugin.startCount())
	require.NotEmpty(t, d.URL())

	status, header, body := get(t, d.URL()+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "text/html; charset=utf-8", header.Get("Content-Type"))
	assert.Contains(t, body, ReloadPath, "reload client is injected")
	assert.Less(t, strings.Index(body, ReloadPath), strings.Index(body, "</body>"))

	status, header, body = get(t, d.URL()+"/app.js")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "text/javascript; charset=utf-8", header.Get("Content-Type"))
	assert.Equal(t, testutil.AppJS, body)

	status, _, body = get(t, d.URL()+"/missing.js")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Empty(t, body)
}

func TestDevServerBuildStartFailureAborts(t *testing.T) {
	d, err := NewDevServer(DevServerOptions{Root: testutil.NewWebRoot(t, nil), Plugins: []Plugin{&fakePlugin{startErr: errStart}}})
	require.NoError(t, err)

	err = d.Start(context.Background())
	require.ErrorIs(t, err, errStart)
	assert.Empty(t, d.URL())
	require.NoError(t, d.Close(context.Background()))
}

func TestDevServerNotifyInvalidatesCacheAndReloads(t *testing.T) {
	root := testutil.NewWebRoot(t, nil)
	plugin := &fakePlugin{}
	d := startDevServer(t, root, plugin)

	_, _, body := get(t, d.URL()+"/app.js")
	require.Equal(t, testutil.AppJS, body)

	wsURL := "ws://" + d.Addr() + ReloadPath
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return d.hub.count() == 1 }, 5*time.Second, 10*time.Millisecond)

	appPath := filepath.Join(root, "app.js")
	testutil.WriteFile(t, appPath, "console.log(2)")
	d.Notify(context.Background(), appPath)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg ReloadMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "update", msg.Type)

	assert.Contains(t, plugin.changed(), appPath)

	_, _, body = get(t, d.URL()+"/app.js")
	assert.Equal(t, "console.log(2)", body)
}

func TestDevServerWatcherForwardsChanges(t *testing.T) {
	root := testutil.NewWebRoot(t, nil)
	extra := t.TempDir()
	plugin := &fakePlugin{watchDirs: []string{extra}}
	startDevServer(t, root, plugin)

	changed := filepath.Join(extra, "index.ts")
	testutil.WriteFile(t, changed, "export {}")

	require.Eventually(t, func() bool {
		for _, p := range plugin.changed() {
			if p == changed {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDevServerHandlerWithHTTPTest(t *testing.T) {
	d, err := NewDevServer(DevServerOptions{Root: testutil.NewWebRoot(t, map[string]string{"index.html": "<p>no body tag</p>"})})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "<p>no body tag</p><script>"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	d.serveFile(rec, httptest.NewRequest(http.MethodGet, "/../../etc/passwd", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInjectReloadClientLeavesInputIntact(t *testing.T) {
	in := []byte("<html><BODY>x</BODY></html>")
	out := injectReloadClient(in)

	assert.Equal(t, "<html><BODY>x</BODY></html>", string(in))
	assert.True(t, strings.HasSuffix(string(out), "</script></BODY></html>"))
}

func TestDevServerSpeaksCleartextHTTP2(t *testing.T) {
	d := startDevServer(t, testutil.NewWebRoot(t, nil))

	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var dialer net.Dialer
				return dialer.DialContext(ctx, network, addr)
			},
		},
	}
	defer client.CloseIdleConnections()

	resp, err := client.Get(d.URL() + "/app.js")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, 2, resp.ProtoMajor)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testutil.AppJS, string(body))
}
