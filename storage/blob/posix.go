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
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gorse-io/playlist/common/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

func joinPath(elem ...string) string {
	return strings.TrimPrefix(path.Join(elem...), "/")
}

type POSIX struct {
	dir string
}

func NewPOSIX(dir string) *POSIX {
	return &POSIX{dir: dir}
}

func (p *POSIX) Open(_ context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(p.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("object %s", name)
		}
		return nil, errors.Trace(err)
	}
	return file, nil
}

// Create writes into a temporary file in the same directory. Close syncs it and renames
// it over the destination.
func (p *POSIX) Create(_ context.Context, name string) (Writer, error) {
	fullPath := filepath.Join(p.dir, name)
	if err := os.MkdirAll(filepath.Dir(fullPath), os.ModePerm); err != nil {
		return nil, errors.Trace(err)
	}
	file, err := os.CreateTemp(filepath.Dir(fullPath), "."+filepath.Base(fullPath)+".tmp-*")
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &posixWriter{File: file, path: fullPath}, nil
}

func (p *POSIX) Stat(_ context.Context, name string) (Fingerprint, error) {
	info, err := os.Stat(filepath.Join(p.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NotFoundf("object %s", name)
		}
		return "", errors.Trace(err)
	}
	return Fingerprint(fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size())), nil
}

type posixWriter struct {
	*os.File
	path   string
	closed bool
}

func (w *posixWriter) Close() error {
	if w.closed {
		return errors.New("writer already closed")
	}
	w.closed = true
	if err := w.File.Sync(); err != nil {
		w.discard()
		return errors.Trace(err)
	}
	if err := w.File.Close(); err != nil {
		w.discard()
		return errors.Trace(err)
	}
	if err := os.Rename(w.File.Name(), w.path); err != nil {
		w.discard()
		return errors.Trace(err)
	}
	return nil
}

func (w *posixWriter) Abort(err error) {
	if w.closed {
		return
	}
	w.closed = true
	log.Logger().Debug("discard temporary file", zap.String("path", w.path), zap.Error(err))
	_ = w.File.Close()
	w.discard()
}

func (w *posixWriter) discard() {
	if err := os.Remove(w.File.Name()); err != nil && !os.IsNotExist(err) {
		log.Logger().Warn("failed to remove temporary file", zap.String("file", w.File.Name()), zap.Error(err))
	}
}
