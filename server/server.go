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

// Package server exposes the recommendation engine over a REST API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"github.com/gorse-io/playlist/common/log"
	"github.com/gorse-io/playlist/config"
	"github.com/gorse-io/playlist/engine"
	"github.com/gorse-io/playlist/worker"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggest/swgui/v5emb"
	"go.uber.org/zap"
)

const (
	apiDocsPath = "/apidocs/"
	apiSpecPath = "/apidocs.json"
)

// Server serves recommendations from the engine. Reloader is optional, without it the
// admin reload endpoint is unavailable.
type Server struct {
	Config     *config.Config
	Engine     *engine.Engine
	Reloader   *worker.Reloader
	WebService *restful.WebService
	HttpServer *http.Server
	DisableLog bool
}

func NewServer(cfg *config.Config, e *engine.Engine, reloader *worker.Reloader) *Server {
	return &Server{
		Config:     cfg,
		Engine:     e,
		Reloader:   reloader,
		WebService: new(restful.WebService),
	}
}

// Handler creates the container with REST APIs, API docs and metrics.
func (s *Server) Handler() *restful.Container {
	s.CreateWebService()
	container := restful.NewContainer()
	container.Add(s.WebService)
	// register swagger UI
	specConfig := restfulspec.Config{
		WebServices: []*restful.WebService{s.WebService},
		APIPath:     apiSpecPath,
	}
	container.Add(restfulspec.NewOpenAPIService(specConfig))
	container.Handle(apiDocsPath, v5emb.New("Playlist Recommendation API", apiSpecPath, apiDocsPath))
	// register prometheus
	container.Handle("/metrics", promhttp.Handler())
	return container
}

// StartHttpServer serves until Shutdown is called.
func (s *Server) StartHttpServer() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)
	s.HttpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Logger().Info("start http server", zap.String("url", "http://"+addr))
	if err := s.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Trace(err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.HttpServer == nil {
		return nil
	}
	return errors.Trace(s.HttpServer.Shutdown(ctx))
}

// LogFilter tags each response with a request id and logs it.
func (s *Server) LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	requestId := uuid.New().String()
	resp.AddHeader("X-Request-ID", requestId)

	start := time.Now()
	chain.ProcessFilter(req, resp)
	responseTime := time.Since(start)
	RestAPIRequestSecondsVec.WithLabelValues(fmt.Sprintf("%s %s", req.Request.Method, req.SelectedRoutePath())).
		Observe(responseTime.Seconds())
	if !s.DisableLog {
		log.ResponseLogger(resp).Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
			zap.Int("status_code", resp.StatusCode()),
			zap.Duration("response_time", responseTime))
	}
}
