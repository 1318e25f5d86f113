package host

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bundleserve/bundleserve/internal/app"
	"github.com/bundleserve/bundleserve/internal/config"
	"github.com/bundleserve/bundleserve/internal/deploy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenApp answers every request with a 500, so the self-probe fails
// even though the listener binds fine.
type brokenApp struct{}

func (a *brokenApp) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	})
}

func (a *brokenApp) Start(ctx context.Context) error { return nil }
func (a *brokenApp) Stop(ctx context.Context) error  { return nil }

func init() {
	app.Register("broken", func(lc deploy.LoadContext) (app.HostedApplication, error) {
		return &brokenApp{}, nil
	})
}

func writeBundle(t *testing.T, dir string, withLib bool) string {
	t.Helper()

	archivePath := filepath.Join(dir, "app.bundle")
	f, err := os.Create(archivePath)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	entries := map[string]string{
		"index.html": "<html>it works</html>",
	}
	if withLib {
		entries["bundle-inf/lib/core.lib"] = "core"
	}
	for name, content := range entries {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return archivePath
}

func testConfig(t *testing.T, archive string) *config.Config {
	return &config.Config{
		ListenHost:    "127.0.0.1",
		ListenPort:    0,
		RootPath:      "/app/",
		AppDriver:     app.DriverWeb,
		ArchivePath:   archive,
		StagingRoot:   filepath.Join(t.TempDir(), "staging"),
		AdminHost:     "127.0.0.1",
		AdminPort:     0,
		AdminPassword: "hunter2",
		GracefulDelay: time.Second,
	}
}

func TestStartServesDeployedBundle(t *testing.T) {
	cfg := testConfig(t, writeBundle(t, t.TempDir(), true))

	result, rt := Start(context.Background(), cfg)
	require.True(t, result.Started, result.Message)
	require.NotNil(t, rt)

	resp, err := http.Get("http://" + rt.PrimaryAddr() + "/app/index.html")
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>it works</html>", string(b))

	// The admin listener serves metrics alongside the shutdown endpoint.
	resp, err = http.Get("http://" + rt.AdminAddr() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Authenticated shutdown drains and stops.
	resp, err = http.Get("http://" + rt.AdminAddr() + "/shutdown?password=hunter2")
	require.NoError(t, err)
	b, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(b))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, rt.Stop(ctx))
}

func TestStartFailsOnBadDeployment(t *testing.T) {
	cfg := testConfig(t, writeBundle(t, t.TempDir(), false))

	result, rt := Start(context.Background(), cfg)
	assert.False(t, result.Started)
	assert.Nil(t, rt)
	assert.Contains(t, result.Message, "deployment failed")
}

func TestStartFailsOnInvalidConfig(t *testing.T) {
	cfg := testConfig(t, writeBundle(t, t.TempDir(), true))
	cfg.ArchivePath = ""

	result, rt := Start(context.Background(), cfg)
	assert.False(t, result.Started)
	assert.Nil(t, rt)
}

func TestStartFailsOnProbeFailure(t *testing.T) {
	cfg := testConfig(t, writeBundle(t, t.TempDir(), true))
	cfg.AppDriver = "broken"

	result, rt := Start(context.Background(), cfg)
	assert.False(t, result.Started)
	assert.Nil(t, rt)
	assert.Contains(t, result.Message, "startup probe failed")
}

func TestPoolSizes(t *testing.T) {
	cfg := &config.Config{}
	ioConns, workerConns := poolSizes(cfg)
	assert.GreaterOrEqual(t, ioConns, minIOConns)
	assert.GreaterOrEqual(t, workerConns, minWorkerConns)

	cfg = &config.Config{IOConns: 16, WorkerConns: 64}
	ioConns, workerConns = poolSizes(cfg)
	assert.Equal(t, 16, ioConns)
	assert.Equal(t, 64, workerConns)

	// Values below the floor are clamped up.
	cfg = &config.Config{IOConns: 1, WorkerConns: 1}
	ioConns, workerConns = poolSizes(cfg)
	assert.Equal(t, minIOConns, ioConns)
	assert.Equal(t, minWorkerConns, workerConns)
}
