// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorse-io/playlist/cmd/version"
	"github.com/gorse-io/playlist/common/log"
	"github.com/gorse-io/playlist/config"
	"github.com/gorse-io/playlist/engine"
	"github.com/gorse-io/playlist/server"
	"github.com/gorse-io/playlist/storage/blob"
	"github.com/gorse-io/playlist/worker"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

var serverCommand = &cobra.Command{
	Use:   "playlist-server",
	Short: "The REST server of playlist recommendation.",
	Run: func(cmd *cobra.Command, args []string) {
		// Show version
		if showVersion, _ := cmd.PersistentFlags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		// setup logger
		debug, _ := cmd.PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.PersistentFlags(), debug)

		// load config
		configPath, _ := cmd.PersistentFlags().GetString("config")
		log.Logger().Info("load config", zap.String("config", configPath))
		conf, err := config.LoadConfig(configPath)
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}
		flags := cmd.PersistentFlags()
		if flags.Changed("host") {
			conf.Server.Host, _ = flags.GetString("host")
		}
		if flags.Changed("port") {
			conf.Server.Port, _ = flags.GetInt("port")
		}
		if flags.Changed("model-dir") {
			conf.Storage.Type = config.StoragePOSIX
			conf.Storage.Dir, _ = flags.GetString("model-dir")
		}

		// setup tracing
		tp, err := conf.Tracing.NewTracerProvider("playlist-server")
		if err != nil {
			log.Logger().Fatal("failed to create trace provider", zap.Error(err))
		}
		otel.SetTracerProvider(tp)
		otel.SetErrorHandler(log.GetErrorHandler())
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

		store, err := blob.Open(conf.Storage)
		if err != nil {
			log.Logger().Fatal("failed to open model store", zap.Error(err))
		}
		e := engine.NewEngine(conf.Server.DefaultN, conf.Server.MaxN)
		reloader := worker.NewReloader(store, conf.Storage.ModelName, e, conf.Reload)
		s := server.NewServer(conf, e, reloader)
		log.Logger().Info("start playlist server",
			zap.String("version", conf.Server.Version),
			zap.String("model", blob.Location(conf.Storage, conf.Storage.ModelName)),
			zap.Duration("reload_interval", conf.Reload.Interval))

		// Start reload supervisor
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go reloader.Run(ctx)

		// Stop server
		done := make(chan struct{})
		go func() {
			sigint := make(chan os.Signal, 1)
			signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
			<-sigint
			cancel()
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			if err := s.Shutdown(shutdownCtx); err != nil {
				log.Logger().Error("failed to shutdown http server", zap.Error(err))
			}
			if shutdown, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
				if err := shutdown.Shutdown(shutdownCtx); err != nil {
					log.Logger().Warn("failed to flush traces", zap.Error(err))
				}
			}
			close(done)
		}()
		// Start server
		if err = s.StartHttpServer(); err != nil {
			log.Logger().Fatal("failed to start http server", zap.Error(err))
		}
		<-done
		log.Logger().Info("stop playlist server successfully")
	},
}

func init() {
	log.AddFlags(serverCommand.PersistentFlags())
	serverCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	serverCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	serverCommand.PersistentFlags().BoolP("version", "v", false, "playlist version")
	serverCommand.PersistentFlags().String("host", "127.0.0.1", "host of the REST server")
	serverCommand.PersistentFlags().Int("port", 5000, "port of the REST server")
	serverCommand.PersistentFlags().String("model-dir", "", "directory of the model artifact")
}

func main() {
	if err := serverCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
