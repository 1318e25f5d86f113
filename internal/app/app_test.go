package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bundleserve/bundleserve/internal/deploy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveUnknownDriver(t *testing.T) {
	_, err := Resolve("no-such-driver", deploy.LoadContext{})
	assert.ErrorIs(t, err, ErrDriverNotFound)
}

func TestWebDriver(t *testing.T) {
	assets := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(assets, "index.html"), []byte("hello"), 0o644))

	application, err := Resolve(DriverWeb, deploy.LoadContext{AssetsDir: assets})
	require.NoError(t, err)
	require.NoError(t, application.Start(context.Background()))

	srv := httptest.NewServer(application.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	require.NoError(t, application.Stop(context.Background()))
}

func TestWebDriverStartFailsWithoutAssets(t *testing.T) {
	application, err := Resolve(DriverWeb, deploy.LoadContext{AssetsDir: "/does/not/exist"})
	require.NoError(t, err)
	assert.Error(t, application.Start(context.Background()))
}
