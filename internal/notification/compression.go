package notification

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// upper bound on an inflated payload, guarding against decompression bombs
const maxDecompressedSize = 16 << 20

func compressionFromCode(code int) (Compression, error) {
	switch Compression(code) {
	case CompressionNone, CompressionGzip, CompressionZlib:
		return Compression(code), nil
	default:
		return 0, decodeErrorf(nil, "unknown compression type %d", code)
	}
}

// Decompress base64-decodes the payload and inflates it according to the compression tag. The tag
// is never inferred from the content.
func Decompress(c Compression, payload string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, decodeErrorf(err, "payload is not valid base64")
	}
	var reader io.ReadCloser
	switch c {
	case CompressionNone:
		return raw, nil
	case CompressionGzip:
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, decodeErrorf(err, "invalid gzip payload")
		}
		reader = gz
	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, decodeErrorf(err, "invalid zlib payload")
		}
		reader = zr
	default:
		return nil, decodeErrorf(nil, "unknown compression type %d", int(c))
	}
	defer reader.Close() //nolint:errcheck
	out, err := io.ReadAll(io.LimitReader(reader, maxDecompressedSize+1))
	if err != nil {
		return nil, decodeErrorf(err, "corrupt %s payload", c)
	}
	if len(out) > maxDecompressedSize {
		return nil, decodeErrorf(nil, "%s payload exceeds %d bytes", c, maxDecompressedSize)
	}
	return out, nil
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "uncompressed"
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	default:
		return "unknown"
	}
}

// KeyList is the decoded payload of a key-list segments notification.
type KeyList struct {
	Added   []uint64 `json:"a"`
	Removed []uint64 `json:"r"`
}

// Contains reports whether the hash appears in the added list, the removed list, or neither.
func (k KeyList) Contains(hash uint64) (added bool, removed bool) {
	for _, h := range k.Added {
		if h == hash {
			added = true
			break
		}
	}
	for _, h := range k.Removed {
		if h == hash {
			removed = true
			break
		}
	}
	return added, removed
}

// DecodeKeyList decodes the payload of a key-list notification.
func (n SegmentsUpdate) DecodeKeyList() (KeyList, error) {
	var ret KeyList
	data, err := Decompress(n.Compression, n.Data)
	if err != nil {
		return ret, err
	}
	if err := json.Unmarshal(data, &ret); err != nil {
		return ret, decodeErrorf(err, "invalid key list")
	}
	return ret, nil
}

// DecodeBitmap decodes the payload of a bounded-fetch notification.
func (n SegmentsUpdate) DecodeBitmap() ([]byte, error) {
	return Decompress(n.Compression, n.Data)
}
