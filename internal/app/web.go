package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/bundleserve/bundleserve/internal/deploy"
	"github.com/rs/zerolog/log"
)

// DriverWeb serves the staged static assets directly. It is the default
// driver and the only one shipped in the binary; other drivers register
// themselves the same way.
const DriverWeb = "web"

func init() {
	Register(DriverWeb, newWebApp)
}

type webApp struct {
	assetsDir string
}

func newWebApp(lc deploy.LoadContext) (HostedApplication, error) {
	return &webApp{assetsDir: lc.AssetsDir}, nil
}

func (a *webApp) Handler() http.Handler {
	return http.FileServer(http.Dir(a.assetsDir))
}

func (a *webApp) Start(ctx context.Context) error {
	info, err := os.Stat(a.assetsDir)
	if err != nil {
		return fmt.Errorf("web app assets unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("web app assets path %s is not a directory", a.assetsDir)
	}
	log.Info().Str("assets_dir", a.assetsDir).Msg("Web application started")
	return nil
}

func (a *webApp) Stop(ctx context.Context) error {
	log.Info().Msg("Web application stopped")
	return nil
}
