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

package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/gorse-io/playlist/common/log"
	"github.com/gorse-io/playlist/engine"
	"github.com/gorse-io/playlist/model"
	"github.com/gorse-io/playlist/worker"
	"github.com/juju/errors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/emicklei/go-restful/otelrestful"
	"go.uber.org/zap"
)

const serviceName = "Playlist Recommendation API"

type RecommendRequest struct {
	Songs []string `json:"songs" description:"songs the user likes"`
	N     int      `json:"n,omitempty" description:"number of returned songs"`
}

type RecommendResponse struct {
	Songs              []string                `json:"songs"`
	Scores             []engine.Recommendation `json:"scores"`
	Version            string                  `json:"version"`
	ModelVersion       string                  `json:"model_version"`
	ModelDate          time.Time               `json:"model_date"`
	InputSongs         []string                `json:"input_songs"`
	NumRecommendations int                     `json:"num_recommendations"`
}

type Health struct {
	Status       string    `json:"status"`
	ModelLoaded  bool      `json:"model_loaded"`
	Version      string    `json:"version"`
	ModelVersion string    `json:"model_version,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type ModelInfo struct {
	Version       string         `json:"version"`
	FormatVersion uint32         `json:"format_version"`
	CreatedAt     time.Time      `json:"created_at"`
	PublishedAt   time.Time      `json:"published_at"`
	Params        model.Params   `json:"params"`
	Stats         model.Stats    `json:"stats"`
	Reload        *worker.Status `json:"reload,omitempty"`
}

type ReloadResponse struct {
	Reloaded bool          `json:"reloaded"`
	Status   worker.Status `json:"status"`
}

type Index struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

type ErrorMessage struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateWebService creates web service.
func (s *Server) CreateWebService() {
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/")
	ws.Filter(s.LogFilter)
	ws.Filter(otelrestful.OTelFilter("playlist-server"))

	ws.Route(ws.GET("/").To(s.index).
		Doc("Get API information.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Writes(Index{}))
	ws.Route(ws.GET("/health").To(s.health).
		Doc("Health check.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Returns(http.StatusOK, "OK", Health{}).
		Returns(http.StatusServiceUnavailable, "no model loaded", Health{}).
		Writes(Health{}))
	ws.Route(ws.GET("/api/health").To(s.health).
		Doc("Health check.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Returns(http.StatusOK, "OK", Health{}).
		Returns(http.StatusServiceUnavailable, "no model loaded", Health{}).
		Writes(Health{}))

	// Get recommendation
	ws.Route(ws.POST("/api/recommend").To(s.postRecommend).
		Doc("Recommend songs for a list of songs.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Reads(RecommendRequest{}).
		Returns(http.StatusOK, "OK", RecommendResponse{}).
		Returns(http.StatusBadRequest, "malformed request", ErrorMessage{}).
		Returns(http.StatusServiceUnavailable, "no model loaded", ErrorMessage{}).
		Writes(RecommendResponse{}))
	ws.Route(ws.GET("/api/recommend").To(s.getRecommend).
		Doc("Recommend songs for a list of songs.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.QueryParameter("song", "song the user likes, repeatable").DataType("string").AllowMultiple(true)).
		Param(ws.QueryParameter("n", "number of returned songs").DataType("integer")).
		Returns(http.StatusOK, "OK", RecommendResponse{}).
		Returns(http.StatusBadRequest, "malformed request", ErrorMessage{}).
		Returns(http.StatusServiceUnavailable, "no model loaded", ErrorMessage{}).
		Writes(RecommendResponse{}))

	// Model management
	ws.Route(ws.GET("/api/model").To(s.getModel).
		Doc("Get metadata of the active model.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"model"}).
		Returns(http.StatusOK, "OK", ModelInfo{}).
		Returns(http.StatusServiceUnavailable, "no model loaded", ErrorMessage{}).
		Writes(ModelInfo{}))
	ws.Route(ws.POST("/api/admin/reload").To(s.reload).
		Doc("Check the model store and reload the model if it changed.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"model"}).
		Returns(http.StatusOK, "OK", ReloadResponse{}).
		Writes(ReloadResponse{}))
}

func (s *Server) index(_ *restful.Request, response *restful.Response) {
	Ok(response, Index{
		Service: serviceName,
		Version: s.Config.Server.Version,
		Endpoints: map[string]string{
			"/api/recommend":    "POST - Get song recommendations",
			"/api/health":       "GET - Health check",
			"/api/model":        "GET - Active model metadata",
			"/api/admin/reload": "POST - Reload model",
			"/apidocs/":         "GET - API documentation",
			"/metrics":          "GET - Prometheus metrics",
		},
	})
}

func (s *Server) health(_ *restful.Request, response *restful.Response) {
	health := Health{
		Status:    "unhealthy",
		Version:   s.Config.Server.Version,
		Timestamp: time.Now(),
	}
	if snapshot := s.Engine.Snapshot(); snapshot != nil {
		health.Status = "healthy"
		health.ModelLoaded = true
		health.ModelVersion = snapshot.Model.Version
		Ok(response, health)
		return
	}
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteHeaderAndJson(http.StatusServiceUnavailable, health, restful.MIME_JSON); err != nil {
		log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
	}
}

func (s *Server) postRecommend(request *restful.Request, response *restful.Response) {
	if !s.Engine.Ready() {
		ServiceUnavailable(response, engine.ErrNotReady)
		return
	}
	var body RecommendRequest
	if err := request.ReadEntity(&body); err != nil {
		BadRequest(response, errors.NewNotValid(err, "invalid JSON"))
		return
	}
	s.recommend(response, body.Songs, body.N)
}

func (s *Server) getRecommend(request *restful.Request, response *restful.Response) {
	if !s.Engine.Ready() {
		ServiceUnavailable(response, engine.ErrNotReady)
		return
	}
	n, err := ParseInt(request, "n", 0)
	if err != nil {
		BadRequest(response, err)
		return
	}
	s.recommend(response, request.QueryParameters("song"), n)
}

func (s *Server) recommend(response *restful.Response, songs []string, n int) {
	if n < 0 {
		BadRequest(response, errors.NotValidf("n = %d", n))
		return
	}
	recommendations, m, err := s.Engine.RecommendScored(songs, n)
	if err != nil {
		writeError(response, err)
		return
	}
	result := RecommendResponse{
		Songs:              make([]string, len(recommendations)),
		Scores:             recommendations,
		Version:            s.Config.Server.Version,
		ModelVersion:       m.Version,
		ModelDate:          m.CreatedAt,
		InputSongs:         songs,
		NumRecommendations: len(recommendations),
	}
	for i, recommendation := range recommendations {
		result.Songs[i] = recommendation.Song
	}
	Ok(response, result)
}

func (s *Server) getModel(_ *restful.Request, response *restful.Response) {
	snapshot := s.Engine.Snapshot()
	if snapshot == nil {
		ServiceUnavailable(response, engine.ErrNotReady)
		return
	}
	info := ModelInfo{
		Version:       snapshot.Model.Version,
		FormatVersion: snapshot.Model.FormatVersion,
		CreatedAt:     snapshot.Model.CreatedAt,
		PublishedAt:   snapshot.PublishedAt,
		Params:        snapshot.Model.Params,
		Stats:         snapshot.Model.Stats,
	}
	if s.Reloader != nil {
		status := s.Reloader.Status()
		info.Reload = &status
	}
	Ok(response, info)
}

func (s *Server) reload(request *restful.Request, response *restful.Response) {
	if s.Reloader == nil {
		ServiceUnavailable(response, errors.NotSupportedf("model reload"))
		return
	}
	// a client going away must not interrupt the load
	reloaded, err := s.Reloader.Reload(context.WithoutCancel(request.Request.Context()))
	if errors.Is(err, errors.NotFound) {
		PageNotFound(response, err)
		return
	} else if err != nil {
		// a broken artifact is a server side failure
		InternalServerError(response, err)
		return
	}
	Ok(response, ReloadResponse{Reloaded: reloaded, Status: s.Reloader.Status()})
}

// ParseInt parses integers from the query parameter.
func ParseInt(request *restful.Request, name string, fallback int) (int, error) {
	valueString := request.QueryParameter(name)
	if valueString == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueString)
	if err != nil {
		return 0, errors.NewNotValid(err, name)
	}
	return value, nil
}

func writeError(response *restful.Response, err error) {
	switch {
	case errors.Is(err, engine.ErrNotReady):
		ServiceUnavailable(response, err)
	case errors.Is(err, errors.NotValid):
		BadRequest(response, err)
	case errors.Is(err, errors.NotFound):
		PageNotFound(response, err)
	default:
		InternalServerError(response, err)
	}
}

func writeErrorMessage(response *restful.Response, status int, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err = response.WriteHeaderAndJson(status, ErrorMessage{
		Error:   http.StatusText(status),
		Message: err.Error(),
	}, restful.MIME_JSON); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	log.ResponseLogger(response).Warn("bad request", zap.Error(err))
	writeErrorMessage(response, http.StatusBadRequest, err)
}

// PageNotFound returns a not found error.
func PageNotFound(response *restful.Response, err error) {
	writeErrorMessage(response, http.StatusNotFound, err)
}

// ServiceUnavailable returns a service unavailable error.
func ServiceUnavailable(response *restful.Response, err error) {
	writeErrorMessage(response, http.StatusServiceUnavailable, err)
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	log.ResponseLogger(response).Error("internal server error", zap.Error(err))
	writeErrorMessage(response, http.StatusInternalServerError, err)
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content any) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
	}
}
