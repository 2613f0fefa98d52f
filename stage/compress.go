// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package stage

import (
	"fmt"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Compressor compresses spool frames.
type Compressor interface {
	// Name is the name of the compression algorithm.
	Name() string
	// Compress appends the compressed contents
	// of src to dst and returns the result.
	Compress(src, dst []byte) []byte
}

// Decompressor is the read-side counterpart of Compressor.
type Decompressor interface {
	// Name is the name of the compression algorithm.
	Name() string
	// Decompress decompresses src into a buffer of
	// exactly size bytes.
	Decompress(src []byte, size int) ([]byte, error)
}

type zstdCompressor struct {
	enc *zstd.Encoder
}

func (z zstdCompressor) Name() string { return "zstd" }

func (z zstdCompressor) Compress(src, dst []byte) []byte {
	return z.enc.EncodeAll(src, dst)
}

var zstdDecoder *zstd.Decoder

func init() {
	z, err := zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
	zstdDecoder = z
}

type zstdDecompressor struct{}

func (zstdDecompressor) Name() string { return "zstd" }

func (zstdDecompressor) Decompress(src []byte, size int) ([]byte, error) {
	ret, err := zstdDecoder.DecodeAll(src, make([]byte, 0, size))
	if err != nil {
		return nil, err
	}
	if len(ret) != size {
		return nil, fmt.Errorf("expected %d bytes decompressed; got %d", size, len(ret))
	}
	return ret, nil
}

type s2Compressor struct{}

func (s2Compressor) Name() string { return "s2" }

func (s2Compressor) Compress(src, dst []byte) []byte {
	return append(dst, s2.Encode(nil, src)...)
}

func (s2Compressor) Decompress(src []byte, size int) ([]byte, error) {
	ret, err := s2.Decode(make([]byte, 0, size), src)
	if err != nil {
		return nil, err
	}
	if len(ret) != size {
		return nil, fmt.Errorf("expected %d bytes decompressed; got %d", size, len(ret))
	}
	return ret, nil
}

// Compression selects a compression algorithm by name.
// The name "none" (or "") selects no compression and
// returns nil.
func Compression(name string) (Compressor, error) {
	switch name {
	case "zstd":
		z, _ := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		return zstdCompressor{z}, nil
	case "s2":
		return s2Compressor{}, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("stage: no compression named %q", name)
	}
}

// Decompression selects the decompressor matching
// a Compression selection of the same name.
func Decompression(name string) (Decompressor, error) {
	switch name {
	case "zstd":
		return zstdDecompressor{}, nil
	case "s2":
		return s2Compressor{}, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("stage: no compression named %q", name)
	}
}
