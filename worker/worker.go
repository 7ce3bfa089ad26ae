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

// Package worker keeps the recommendation engine in sync with the model store.
package worker

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/gorse-io/playlist/common/log"
	"github.com/gorse-io/playlist/common/parallel"
	"github.com/gorse-io/playlist/common/util"
	"github.com/gorse-io/playlist/config"
	"github.com/gorse-io/playlist/engine"
	"github.com/gorse-io/playlist/model"
	"github.com/gorse-io/playlist/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Status describes the reload history.
type Status struct {
	Fingerprint       string    `json:"fingerprint"`
	FailedFingerprint string    `json:"failed_fingerprint,omitempty"`
	ModelVersion      string    `json:"model_version,omitempty"`
	LastAttempt       time.Time `json:"last_attempt"`
	LastSuccess       time.Time `json:"last_success"`
	LastError         string    `json:"last_error,omitempty"`
	Reloads           int64     `json:"reloads"`
	Failures          int64     `json:"failures"`
}

// Reloader polls the model artifact and publishes new versions to the engine. Failed loads
// are logged and the previous model keeps serving. Storage errors and timeouts are retried
// on the next attempt, while a corrupted or incompatible artifact is remembered by
// fingerprint and skipped until it changes.
type Reloader struct {
	store    blob.Store
	name     string
	engine   *engine.Engine
	interval time.Duration
	timeout  time.Duration

	mutex       sync.Mutex // one attempt at a time
	fingerprint blob.Fingerprint
	failed      blob.Fingerprint
	status      atomic.Pointer[Status]
	reading     atomic.Bool                // a read is in flight, possibly abandoned after timeout
	triggerChan *parallel.ConditionChannel // manually triggered events
}

func NewReloader(store blob.Store, name string, e *engine.Engine, cfg config.ReloadConfig) *Reloader {
	r := &Reloader{
		store:       store,
		name:        name,
		engine:      e,
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		triggerChan: parallel.NewConditionChannel(),
	}
	r.status.Store(&Status{})
	return r
}

// Status returns a copy of the reload status.
func (r *Reloader) Status() Status {
	return *r.status.Load()
}

// Trigger requests a reload attempt without waiting for the next tick.
func (r *Reloader) Trigger() {
	r.triggerChan.Signal()
}

// Run checks the artifact once, then on every tick or trigger until ctx is done.
func (r *Reloader) Run(ctx context.Context) {
	defer util.CheckPanic()
	r.attempt(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.triggerChan.C:
		}
		r.attempt(ctx)
	}
}

func (r *Reloader) attempt(ctx context.Context) {
	if _, err := r.Reload(ctx); err != nil {
		if errors.Is(err, errors.NotFound) {
			log.Logger().Warn("model artifact not found", zap.String("name", r.name), zap.Error(err))
		} else {
			log.Logger().Error("failed to reload model, keep serving previous model",
				zap.String("name", r.name), zap.Error(err))
		}
	}
}

// Reload publishes the artifact if its fingerprint changed since the last attempt. It
// reports whether a new model was published.
func (r *Reloader) Reload(ctx context.Context) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	start := time.Now()
	status := r.Status()
	status.LastAttempt = start

	fingerprint, err := r.store.Stat(ctx, r.name)
	if err != nil {
		r.fail(&status, "", err)
		return false, errors.Trace(err)
	}
	if fingerprint == r.fingerprint {
		ReloadTotal.WithLabelValues(ResultUnchanged).Inc()
		r.status.Store(&status)
		return false, nil
	}
	if fingerprint == r.failed {
		ReloadTotal.WithLabelValues(ResultSkipped).Inc()
		r.status.Store(&status)
		return false, nil
	}

	log.Logger().Info("start loading model",
		zap.String("name", r.name),
		zap.String("fingerprint", string(fingerprint)))
	loadCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	m, err := r.load(loadCtx)
	if err != nil {
		if !isBroken(err) {
			fingerprint = ""
		}
		r.fail(&status, fingerprint, err)
		return false, errors.Trace(err)
	}

	r.engine.Publish(m)
	r.fingerprint = fingerprint
	r.failed = ""
	status.Fingerprint = string(fingerprint)
	status.FailedFingerprint = ""
	status.ModelVersion = m.Version
	status.LastSuccess = time.Now()
	status.LastError = ""
	status.Reloads++
	r.status.Store(&status)
	ReloadTotal.WithLabelValues(ResultSuccess).Inc()
	ReloadSeconds.Observe(time.Since(start).Seconds())
	LastReloadTimestamp.Set(float64(status.LastSuccess.Unix()))
	log.Logger().Info("model reloaded",
		zap.String("version", m.Version),
		zap.Int("rules", len(m.Rules)),
		zap.Time("created_at", m.CreatedAt),
		zap.Duration("duration", time.Since(start)))
	return true, nil
}

func (r *Reloader) fail(status *Status, fingerprint blob.Fingerprint, err error) {
	if fingerprint != "" {
		r.failed = fingerprint
		status.FailedFingerprint = string(fingerprint)
	}
	status.LastError = err.Error()
	status.Failures++
	r.status.Store(status)
	ReloadTotal.WithLabelValues(ResultFailure).Inc()
}

// isBroken reports whether err comes from the artifact content rather than from the store.
func isBroken(err error) bool {
	return errors.Is(err, errors.NotValid) || errors.Is(err, errors.NotSupported)
}

type loadResult struct {
	model *model.Model
	err   error
}

// load reads and validates the artifact. It gives up when ctx expires even if the
// store does not honor cancellation. An abandoned read blocks new reads until it returns.
func (r *Reloader) load(ctx context.Context) (*model.Model, error) {
	if !r.reading.CompareAndSwap(false, true) {
		return nil, errors.New("previous model load has not finished")
	}
	result := make(chan loadResult, 1)
	go func() {
		res := loadResult{err: errors.New("model load panicked")}
		defer func() {
			r.reading.Store(false)
			result <- res
		}()
		defer util.CheckPanic()
		res.model, res.err = r.read(ctx)
	}()
	select {
	case <-ctx.Done():
		return nil, errors.Annotate(ctx.Err(), "load model")
	case res := <-result:
		return res.model, res.err
	}
}

func (r *Reloader) read(ctx context.Context) (*model.Model, error) {
	rc, err := r.store.Open(ctx, r.name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func(rc io.ReadCloser) {
		if err := rc.Close(); err != nil {
			log.Logger().Warn("failed to close model artifact", zap.Error(err))
		}
	}(rc)
	// read fully first so that transfer errors are not mistaken for a corrupted artifact
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Annotate(err, "read model artifact")
	}
	m, err := model.Unmarshal(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}
