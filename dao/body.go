package dao

import (
	"github.com/klauspost/compress/zstd"
)

// Cached bodies are stored zstd-compressed. The encoder and decoder are
// package-wide because EncodeAll/DecodeAll on a nil stream are safe for
// concurrent use.
var (
	bodyEncoder *zstd.Encoder
	bodyDecoder *zstd.Decoder
)

func init() {
	var err error
	bodyEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic("dao: zstd encoder initialization failed: " + err.Error())
	}
	bodyDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("dao: zstd decoder initialization failed: " + err.Error())
	}
}

func compressBody(data []byte) []byte {
	return bodyEncoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

func decompressBody(data []byte) ([]byte, error) {
	return bodyDecoder.DecodeAll(data, nil)
}
