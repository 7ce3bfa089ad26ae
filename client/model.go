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

package client

import (
	"fmt"
	"net/http"
	"time"

	"github.com/juju/errors"
)

type Recommendation struct {
	Song  string  `json:"song"`
	Score float64 `json:"score"`
}

type RecommendRequest struct {
	Songs []string `json:"songs"`
	N     int      `json:"n,omitempty"`
}

type RecommendResponse struct {
	Songs              []string         `json:"songs"`
	Scores             []Recommendation `json:"scores"`
	Version            string           `json:"version"`
	ModelVersion       string           `json:"model_version"`
	ModelDate          time.Time        `json:"model_date"`
	InputSongs         []string         `json:"input_songs"`
	NumRecommendations int              `json:"num_recommendations"`
}

type Health struct {
	Status       string    `json:"status"`
	ModelLoaded  bool      `json:"model_loaded"`
	Version      string    `json:"version"`
	ModelVersion string    `json:"model_version,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type Params struct {
	MinSupport     float64 `json:"min_support"`
	MinConfidence  float64 `json:"min_confidence"`
	SampleSize     int     `json:"sample_size"`
	SampleSeed     int64   `json:"sample_seed"`
	MaxItemsetSize int     `json:"max_itemset_size"`
	MaxLength      int     `json:"max_length"`
}

type Stats struct {
	Dataset         string        `json:"dataset"`
	NumPlaylists    int           `json:"num_playlists"`
	NumTransactions int           `json:"num_transactions"`
	NumTracks       int           `json:"num_tracks"`
	NumItemsets     int           `json:"num_itemsets"`
	NumRules        int           `json:"num_rules"`
	SkippedItemsets int           `json:"skipped_itemsets"`
	TrainTime       time.Duration `json:"train_time"`
}

type ReloadStatus struct {
	Fingerprint       string    `json:"fingerprint"`
	FailedFingerprint string    `json:"failed_fingerprint,omitempty"`
	ModelVersion      string    `json:"model_version,omitempty"`
	LastAttempt       time.Time `json:"last_attempt"`
	LastSuccess       time.Time `json:"last_success"`
	LastError         string    `json:"last_error,omitempty"`
	Reloads           int64     `json:"reloads"`
	Failures          int64     `json:"failures"`
}

type ModelInfo struct {
	Version       string        `json:"version"`
	FormatVersion uint32        `json:"format_version"`
	CreatedAt     time.Time     `json:"created_at"`
	PublishedAt   time.Time     `json:"published_at"`
	Params        Params        `json:"params"`
	Stats         Stats         `json:"stats"`
	Reload        *ReloadStatus `json:"reload,omitempty"`
}

type ReloadResponse struct {
	Reloaded bool         `json:"reloaded"`
	Status   ReloadStatus `json:"status"`
}

// Error is a non-2xx response of the server.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// IsNotReady reports whether the server has no model loaded.
func IsNotReady(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable
}
