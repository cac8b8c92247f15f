package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-mirror/pkg/simplemirror/api"
	"github.com/tendant/simple-mirror/pkg/simplemirror/config"
)

func main() {
	usage := flag.Bool("usage", false, "print environment variables and exit")
	flag.Parse()
	if *usage {
		fmt.Println(config.Usage())
		return
	}

	_ = godotenv.Load()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx := context.Background()
	runtime, err := cfg.BuildMirrorer(ctx, logger, prometheus.DefaultRegisterer)
	if err != nil {
		slog.Error("Failed to build mirror pipeline", "err", err)
		os.Exit(1)
	}
	defer runtime.Close()

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)
	server.R.Handle("/metrics", promhttp.Handler())

	// Local stores serve their own objects so public URLs resolve.
	if handler, ok := runtime.Store.(http.Handler); ok {
		prefix := objectsPrefix(cfg.Storage.LocalBaseURL)
		server.R.Mount(prefix, http.StripPrefix(prefix, handler))
	}

	mirrorHandler := api.NewMirrorHandler(runtime.Mirrorer, logger)
	server.R.Route("/api/v1", func(r chi.Router) {
		r.Mount("/", mirrorHandler.Routes())
	})

	server.Run()
}

// objectsPrefix returns the path part of the local store base URL.
func objectsPrefix(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || strings.Trim(u.Path, "/") == "" {
		return "/objects"
	}
	return strings.TrimSuffix(u.Path, "/")
}
