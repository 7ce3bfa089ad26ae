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

	"github.com/gorse-io/playlist/common/log"
	"github.com/gorse-io/playlist/config"
	"github.com/juju/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type S3 struct {
	*minio.Client
	bucket string
	prefix string
}

func NewS3(cfg config.S3Config) (*S3, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &S3{
		Client: minioClient,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *S3) objectName(name string) string {
	return joinPath(s.prefix, name)
}

func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	object, err := s.Client.GetObject(ctx, s.bucket, s.objectName(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrapError(err, name)
	}
	// GetObject is lazy, probe the object before handing it out
	if _, err = object.Stat(); err != nil {
		_ = object.Close()
		return nil, s.wrapError(err, name)
	}
	return object, nil
}

// Create streams the object to S3. The object becomes visible only when the upload
// completes.
func (s *S3) Create(ctx context.Context, name string) (Writer, error) {
	fullPath := s.objectName(name)
	return newPipeWriter(func(r io.Reader) error {
		_, err := s.Client.PutObject(ctx, s.bucket, fullPath, r, -1, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
		})
		if err != nil {
			log.Logger().Error("failed to upload file to S3", zap.String("file", fullPath), zap.Error(err))
		}
		return err
	}), nil
}

func (s *S3) Stat(ctx context.Context, name string) (Fingerprint, error) {
	info, err := s.Client.StatObject(ctx, s.bucket, s.objectName(name), minio.StatObjectOptions{})
	if err != nil {
		return "", s.wrapError(err, name)
	}
	return Fingerprint(info.ETag + "@" + info.LastModified.UTC().String()), nil
}

func (s *S3) wrapError(err error, name string) error {
	if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
		return errors.NotFoundf("object %s", name)
	}
	return errors.Trace(err)
}
