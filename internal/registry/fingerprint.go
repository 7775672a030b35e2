package registry

import (
	"hash/crc32"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Fingerprint computes CRC-32 (IEEE polynomial 0x04C11DB7) of a script's
// content. Reload compares fingerprints to tell edited scripts apart.
func Fingerprint(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// readScript reads a script file and its fingerprint in one pass.
func readScript(path string) ([]byte, uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrap(err, "open script")
	}
	defer f.Close()

	h := crc32.NewIEEE()
	data, err := io.ReadAll(io.TeeReader(f, h))
	if err != nil {
		return nil, 0, errors.Wrapf(err, "read %s", path)
	}
	return data, h.Sum32(), nil
}
