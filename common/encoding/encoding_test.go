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

package encoding

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestWriteUint32(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	err := WriteUint32(buf, 7)
	assert.NoError(t, err)
	v, err := ReadUint32(buf)
	assert.NoError(t, err)
	assert.Equal(t, uint32(7), v)
	_, err = ReadUint32(buf)
	assert.Error(t, err)
}

func TestReadBytesTruncated(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	err := WriteBytes(buf, []byte("abcdef"))
	assert.NoError(t, err)
	_, err = ReadBytes(bytes.NewReader(buf.Bytes()[:6]))
	assert.Error(t, err)

	buf.Reset()
	err = binary.Write(buf, binary.LittleEndian, int32(-1))
	assert.NoError(t, err)
	_, err = ReadBytes(buf)
	assert.True(t, errors.Is(err, errors.NotValid))
}
