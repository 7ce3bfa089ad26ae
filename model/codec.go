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

package model

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"io"

	"github.com/gorse-io/playlist/common/encoding"
	"github.com/juju/errors"
)

var magic = [4]byte{'P', 'L', 'R', 'M'}

// maxPayloadSize bounds decompression of untrusted artifacts.
const maxPayloadSize = 1 << 30

// Marshal writes an artifact:
//
//	magic "PLRM" | uint32 format version | gzip(gob(model)) | sha256(gob(model))
//
// Compressed payload and checksum are length-prefixed.
func Marshal(w io.Writer, m *Model) error {
	if err := m.Validate(); err != nil {
		return errors.Trace(err)
	}
	raw := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(raw).Encode(m); err != nil {
		return errors.Trace(err)
	}
	checksum := sha256.Sum256(raw.Bytes())
	compressed := bytes.NewBuffer(nil)
	gzw := gzip.NewWriter(compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return errors.Trace(err)
	}
	if err := gzw.Close(); err != nil {
		return errors.Trace(err)
	}
	// header
	if _, err := w.Write(magic[:]); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteUint32(w, m.FormatVersion); err != nil {
		return errors.Trace(err)
	}
	// body
	if err := encoding.WriteBytes(w, compressed.Bytes()); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteBytes(w, checksum[:])
}

// Unmarshal reads an artifact written by Marshal. Truncated, corrupted or
// incompatible artifacts are rejected.
func Unmarshal(r io.Reader) (*Model, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errors.NewNotValid(err, "model artifact header")
	}
	if header != magic {
		return nil, errors.NotValidf("model artifact magic %q", header[:])
	}
	version, err := encoding.ReadUint32(r)
	if err != nil {
		return nil, errors.NewNotValid(err, "model artifact version")
	}
	if version != FormatVersion {
		return nil, errors.NotSupportedf("model format version %d", version)
	}
	compressed, err := encoding.ReadBytes(r)
	if err != nil {
		return nil, errors.NewNotValid(err, "model artifact payload")
	}
	checksum, err := encoding.ReadBytes(r)
	if err != nil {
		return nil, errors.NewNotValid(err, "model artifact checksum")
	}
	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, errors.NewNotValid(err, "model artifact payload")
	}
	defer func() { _ = gzr.Close() }()
	raw, err := io.ReadAll(io.LimitReader(gzr, maxPayloadSize))
	if err != nil {
		return nil, errors.NewNotValid(err, "model artifact payload")
	}
	actual := sha256.Sum256(raw)
	if !bytes.Equal(actual[:], checksum) {
		return nil, errors.NotValidf("model artifact checksum")
	}
	var m Model
	if err = gob.NewDecoder(bytes.NewReader(raw)).Decode(&m); err != nil {
		return nil, errors.NewNotValid(err, "model artifact payload")
	}
	if err = m.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &m, nil
}
