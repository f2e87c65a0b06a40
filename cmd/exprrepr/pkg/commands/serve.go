package commands

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/orizon-lang/exprrepr/internal/remote"
)

// NewServeCommand runs the HTTP/3 evaluation server.
func NewServeCommand(app *App) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve remote evaluation over HTTP/3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config.Server
			if listen != "" {
				cfg.Listen = listen
			}
			cat, c, err := app.Environment()
			if err != nil {
				return err
			}

			var tlsCfg *tls.Config
			if cfg.CertFile != "" {
				tlsCfg, err = remote.LoadTLS(cfg.CertFile, cfg.KeyFile)
			} else {
				host, _, splitErr := net.SplitHostPort(cfg.Listen)
				if splitErr != nil {
					return splitErr
				}
				if host == "" {
					host = "localhost"
				}
				app.Log.Warn("no certificate configured, using a self-signed one", "host", host)
				tlsCfg, err = remote.SelfSignedTLS([]string{host}, 0)
			}
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			h := remote.NewHandler(cat, c,
				remote.WithLogger(app.Logr()),
				remote.WithMaxDepth(app.MaxDepth()),
				remote.WithRegistry(reg))

			srv := remote.NewServer(cfg.Listen, tlsCfg, h)
			addr, err := srv.Start()
			if err != nil {
				return err
			}
			app.Log.Info("serving", "addr", "https://"+addr, "eval", remote.EvalPath, "metrics", remote.MetricsPath)

			<-cmd.Context().Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			app.Log.Info("shutting down")
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "override server.listen")
	return cmd
}
