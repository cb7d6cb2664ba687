/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"context"
	"net/http"
	_ "net/http/pprof" // registered on the pprof listener only when -pprof is set
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	syscall "golang.org/x/sys/unix"

	"github.com/ntpauthd/ntpauthd/internal/httpapi"
	"github.com/ntpauthd/ntpauthd/internal/ntpauth"
	"github.com/ntpauthd/ntpauthd/internal/version"
)

var (
	enablePprof bool
	configPath  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the time authority service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&enablePprof, "pprof", false, "enable the /debug/pprof mux on a separate localhost listener")
	serveCmd.Flags().StringVar(&configPath, "config", "", "optional YAML file overriding a subset of the environment configuration")
	RootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := ntpauth.ConfigFromEnv()
	if err != nil {
		return err
	}
	if configPath != "" {
		if err := cfg.ApplyFile(configPath); err != nil {
			return err
		}
	}

	runID := uuid.New().String()
	log.WithFields(log.Fields{"build": version.String(), "run_id": runID}).Info("starting ntpauthd")

	registry := prometheus.NewRegistry()
	svc := ntpauth.NewService(cfg, registry)
	svc.Metrics.BuildInfo.WithLabelValues(version.Version, version.GitSHA).Set(1)

	if enablePprof {
		go func() {
			log.Warning("starting pprof listener on localhost:6060")
			log.Error(http.ListenAndServe("localhost:6060", nil))
		}()
	}

	handler := httpapi.NewHandler(svc, cfg.RequireSync, cfg.ErrorTextNoSync, svc.Metrics, registry)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigStop := make(chan os.Signal, 1)
	signal.Notify(sigStop, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	serviceDone := make(chan error, 1)
	go func() { serviceDone <- svc.Run(ctx) }()

	httpDone := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Addr).Info("http listener starting")
		httpDone <- httpServer.ListenAndServe()
	}()

	select {
	case <-sigStop:
		log.Warning("graceful shutdown requested")
	case err := <-serviceDone:
		log.WithError(err).Error("time authority engine exited unexpectedly")
	case err := <-httpDone:
		log.WithError(err).Error("http listener exited unexpectedly")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
