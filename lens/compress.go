package lens

import (
	"runtime"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// ZstdCompress compresses a byte slice using zstd and returns the compressed data.
func ZstdCompress(dst, data []byte) []byte {
	encOpts := []zstd.EOption{
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
	}
	if len(data) > 1024*1024*100 { // update options for large payloads
		encOpts = append(encOpts, zstd.WithEncoderConcurrency(max(1, runtime.NumCPU()/2)))
	}
	encoder, err := zstd.NewWriter(nil, encOpts...)
	if err != nil {
		panic(err) // theoretically not possible
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, dst)
}

// ZstdDecompress decompresses a zstd-compressed byte slice and returns the original data.
func ZstdDecompress(dst, data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, dst)
}

// S2Compress compresses with s2, used for the in-memory cache where speed matters more than ratio.
func S2Compress(dst, data []byte) []byte {
	return s2.Encode(dst, data)
}

// S2Decompress reverses S2Compress.
func S2Decompress(dst, data []byte) ([]byte, error) {
	return s2.Decode(dst, data)
}
