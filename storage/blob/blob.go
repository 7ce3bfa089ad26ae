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

package blob

import (
	"context"
	"io"

	"github.com/gorse-io/playlist/config"
	"github.com/juju/errors"
)

// Fingerprint identifies one version of an object. It changes whenever the object is
// replaced and is obtained without reading the object.
type Fingerprint string

// Writer receives the content of a new object. Close publishes the object as a whole,
// Abort discards it. Readers never observe a partially written object.
type Writer interface {
	io.WriteCloser
	Abort(err error)
}

// Store is a flat namespace of objects holding model artifacts.
type Store interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Create(ctx context.Context, name string) (Writer, error)
	Stat(ctx context.Context, name string) (Fingerprint, error)
}

// Open creates the store selected by cfg.Type.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case config.StoragePOSIX:
		return NewPOSIX(cfg.Dir), nil
	case config.StorageS3:
		return NewS3(cfg.S3)
	case config.StorageGCS:
		return NewGCS(cfg.GCS)
	case config.StorageAzure:
		return NewAzureBlob(cfg.Azure)
	}
	return nil, errors.NotSupportedf("storage type %q", cfg.Type)
}

// Location describes where an object lives, for logs and model metadata.
func Location(cfg config.StorageConfig, name string) string {
	switch cfg.Type {
	case config.StorageS3:
		return "s3://" + joinPath(cfg.S3.Bucket, cfg.S3.Prefix, name)
	case config.StorageGCS:
		return "gs://" + joinPath(cfg.GCS.Bucket, cfg.GCS.Prefix, name)
	case config.StorageAzure:
		return "azure://" + joinPath(cfg.Azure.Container, cfg.Azure.Prefix, name)
	}
	return joinPath(cfg.Dir, name)
}

// pipeWriter streams into an upload running in another goroutine. Close waits until
// the upload finishes and returns its error.
type pipeWriter struct {
	*io.PipeWriter
	done chan struct{}
	err  error
}

func newPipeWriter(upload func(r io.Reader) error) *pipeWriter {
	pr, pw := io.Pipe()
	w := &pipeWriter{PipeWriter: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		w.err = upload(pr)
		// unblock writers if the upload stopped reading early
		_ = pr.CloseWithError(w.err)
	}()
	return w
}

func (w *pipeWriter) Close() error {
	if err := w.PipeWriter.Close(); err != nil {
		return errors.Trace(err)
	}
	<-w.done
	return errors.Trace(w.err)
}

func (w *pipeWriter) Abort(err error) {
	if err == nil {
		err = errors.New("upload aborted")
	}
	_ = w.PipeWriter.CloseWithError(err)
	<-w.done
}
