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

// Package trainer runs the offline pipeline: load playlists, mine frequent itemsets,
// derive association rules and publish the model artifact.
package trainer

import (
	"bytes"
	"context"
	"time"

	"github.com/gorse-io/playlist/common/log"
	"github.com/gorse-io/playlist/config"
	"github.com/gorse-io/playlist/dataset"
	"github.com/gorse-io/playlist/model"
	"github.com/gorse-io/playlist/model/fpgrowth"
	"github.com/gorse-io/playlist/model/rules"
	"github.com/gorse-io/playlist/storage/blob"
	"github.com/juju/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/gorse-io/playlist/trainer")

// Report summarizes one training run.
type Report struct {
	Dataset  dataset.Report
	Model    *model.Model
	Location string
	Duration time.Duration
}

// TopRules returns at most n rules in model order.
func (r *Report) TopRules(n int) []model.Rule {
	return r.Model.Rules[:min(n, len(r.Model.Rules))]
}

type Trainer struct {
	config       *config.Config
	store        blob.Store
	showProgress bool
}

func NewTrainer(cfg *config.Config, store blob.Store, showProgress bool) *Trainer {
	return &Trainer{config: cfg, store: store, showProgress: showProgress}
}

func (t *Trainer) params() model.Params {
	return model.Params{
		MinSupport:     t.config.Train.MinSupport,
		MinConfidence:  t.config.Train.MinConfidence,
		SampleSize:     t.config.Train.SampleSize,
		SampleSeed:     t.config.Train.SampleSeed,
		MaxItemsetSize: t.config.Train.MaxItemsetSize,
		MaxLength:      t.config.Train.MaxLength,
	}
}

// Train runs the whole pipeline. Invalid configuration is rejected before the dataset is
// read and nothing is written unless every step succeeds.
func (t *Trainer) Train(ctx context.Context) (*Report, error) {
	if err := t.config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	params := t.params()
	if err := params.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	miner, err := fpgrowth.NewMiner(params.MinSupport, params.MaxLength)
	if err != nil {
		return nil, errors.Trace(err)
	}
	generator, err := rules.NewGenerator(params.MinConfidence, params.MaxItemsetSize, t.config.Train.Jobs)
	if err != nil {
		return nil, errors.Trace(err)
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "Train")
	defer span.End()
	source := log.RedactDBURL(t.config.Dataset.Path)
	span.SetAttributes(attribute.String("dataset", source))

	// load transactions
	data, err := step(ctx, StepLoad, func(ctx context.Context) (*dataset.Dataset, error) {
		return dataset.Load(ctx, t.config.Dataset.Path, dataset.Options{
			Table:          t.config.Dataset.Table,
			PlaylistColumn: t.config.Dataset.PlaylistColumn,
			TrackColumn:    t.config.Dataset.TrackColumn,
			Separator:      t.config.Dataset.Separator,
			SampleSize:     params.SampleSize,
			SampleSeed:     params.SampleSeed,
			ShowProgress:   t.showProgress,
		})
	})
	if err != nil {
		return nil, fail(span, err)
	}
	log.Logger().Info("load transactions",
		zap.String("dataset", source),
		zap.Int("rows", data.Report.RowsRead),
		zap.Int("skipped_rows", data.Report.SkippedRows),
		zap.Int("playlists", data.Report.Playlists),
		zap.Int("transactions", data.Report.Transactions),
		zap.Int("songs", data.Report.DistinctSongs))

	// mine frequent itemsets
	itemsets, err := step(ctx, StepMine, func(ctx context.Context) ([]model.Itemset, error) {
		return miner.Mine(ctx, data.Transactions)
	})
	if err != nil {
		return nil, fail(span, err)
	}
	NumItemsets.Set(float64(len(itemsets)))
	log.Logger().Info("mine frequent itemsets",
		zap.Float64("min_support", params.MinSupport),
		zap.Int("itemsets", len(itemsets)))

	// generate rules
	result, err := step(ctx, StepGenerate, func(ctx context.Context) (*rules.Result, error) {
		return generator.Generate(ctx, itemsets)
	})
	if err != nil {
		return nil, fail(span, err)
	}
	NumRules.Set(float64(len(result.Rules)))
	if result.SkippedItemsets > 0 {
		log.Logger().Warn("itemsets exceed max_itemset_size",
			zap.Int("max_itemset_size", params.MaxItemsetSize),
			zap.Int("skipped", result.SkippedItemsets))
	}
	log.Logger().Info("generate association rules",
		zap.Float64("min_confidence", params.MinConfidence),
		zap.Int("rules", len(result.Rules)))

	m := model.NewModel(params, model.Stats{
		Dataset:         source,
		NumPlaylists:    data.Report.Playlists,
		NumTransactions: data.Report.Transactions,
		NumTracks:       data.Report.DistinctSongs,
		NumItemsets:     len(itemsets),
		SkippedItemsets: result.SkippedItemsets,
		TrainTime:       time.Since(start),
	}, result.Rules)

	// save model
	name := t.config.Storage.ModelName
	if _, err = step(ctx, StepSave, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.save(ctx, name, m)
	}); err != nil {
		return nil, fail(span, err)
	}
	report := &Report{
		Dataset:  data.Report,
		Model:    m,
		Location: blob.Location(t.config.Storage, name),
		Duration: time.Since(start),
	}
	log.Logger().Info("save model",
		zap.String("location", report.Location),
		zap.String("version", m.Version),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// save encodes the whole artifact before touching the store so that a failed encoding
// never replaces the published model.
func (t *Trainer) save(ctx context.Context, name string, m *model.Model) error {
	var buf bytes.Buffer
	if err := model.Marshal(&buf, m); err != nil {
		return errors.Trace(err)
	}
	w, err := t.store.Create(ctx, name)
	if err != nil {
		return errors.Trace(err)
	}
	if _, err = w.Write(buf.Bytes()); err != nil {
		w.Abort(err)
		return errors.Trace(err)
	}
	return errors.Trace(w.Close())
}

func step[T any](ctx context.Context, name string, f func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	start := time.Now()
	result, err := f(ctx)
	if err != nil {
		return result, fail(span, errors.Annotatef(err, "%s step", name))
	}
	StepSeconds.WithLabelValues(name).Set(time.Since(start).Seconds())
	return result, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
