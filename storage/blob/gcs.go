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
	"os"
	"strconv"

	"cloud.google.com/go/storage"
	"github.com/gorse-io/playlist/config"
	"github.com/juju/errors"
	"google.golang.org/api/option"
)

type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCS(cfg config.GCSConfig) (*GCS, error) {
	var opts []option.ClientOption
	if os.Getenv("GCS_EMULATOR_ENDPOINT") != "" {
		opts = append(opts, option.WithEndpoint(os.Getenv("GCS_EMULATOR_ENDPOINT")))
		opts = append(opts, option.WithoutAuthentication())
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &GCS{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (g *GCS) object(name string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(joinPath(g.prefix, name))
}

func (g *GCS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := g.object(name).NewReader(ctx)
	if err != nil {
		return nil, g.wrapError(err, name)
	}
	return r, nil
}

// Create uploads through a storage.Writer. GCS publishes the object when the writer is
// closed, cancelling the context abandons the upload.
func (g *GCS) Create(ctx context.Context, name string) (Writer, error) {
	ctx, cancel := context.WithCancel(ctx)
	wc := g.object(name).NewWriter(ctx)
	wc.ContentType = "application/octet-stream"
	return &gcsWriter{Writer: wc, cancel: cancel}, nil
}

func (g *GCS) Stat(ctx context.Context, name string) (Fingerprint, error) {
	attrs, err := g.object(name).Attrs(ctx)
	if err != nil {
		return "", g.wrapError(err, name)
	}
	return Fingerprint(strconv.FormatInt(attrs.Generation, 10)), nil
}

func (g *GCS) wrapError(err error, name string) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return errors.NotFoundf("object %s", name)
	}
	return errors.Trace(err)
}

type gcsWriter struct {
	*storage.Writer
	cancel context.CancelFunc
}

func (w *gcsWriter) Close() error {
	defer w.cancel()
	return errors.Trace(w.Writer.Close())
}

func (w *gcsWriter) Abort(error) {
	w.cancel()
	_ = w.Writer.Close()
}
