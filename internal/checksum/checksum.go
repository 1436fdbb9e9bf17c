// Package checksum computes content fingerprints of source files.
package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
)

// Supported algorithm names, as stored in FileFingerprint.Algorithm
const (
	AlgorithmXXH64  = "XXH64"
	AlgorithmBLAKE3 = "BLAKE3"
	AlgorithmSHA256 = "SHA256"
)

const defaultChunkSize = 64 * 1024

// Option configures a Fingerprinter
type Option func(*Fingerprinter)

// WithChunkSize sets the read buffer size
func WithChunkSize(size int) Option {
	return func(f *Fingerprinter) {
		if size > 0 {
			f.chunkSize = size
		}
	}
}

// WithProgress registers a callback receiving the byte count of every chunk read.
// The callback may be invoked from several goroutines by FingerprintAll.
func WithProgress(fn func(n int64)) Option {
	return func(f *Fingerprinter) {
		f.progress = fn
	}
}

// Fingerprinter streams files through an incremental digest
type Fingerprinter struct {
	algorithm string
	newHash   func() hash.Hash
	chunkSize int
	progress  func(n int64)
}

// New creates a Fingerprinter for the named algorithm (case-insensitive)
func New(algorithm string, opts ...Option) (*Fingerprinter, error) {
	name := strings.ToUpper(strings.TrimSpace(algorithm))
	var newHash func() hash.Hash
	switch name {
	case AlgorithmXXH64, "XXHASH64", "":
		name = AlgorithmXXH64
		newHash = func() hash.Hash { return xxhash.New() }
	case AlgorithmBLAKE3:
		newHash = func() hash.Hash { return blake3.New() }
	case AlgorithmSHA256:
		newHash = sha256.New
	default:
		return nil, lib.ErrInvalidConfig("checksum.algorithm",
			fmt.Sprintf("unsupported checksum algorithm %q (supported: %s, %s, %s)",
				algorithm, AlgorithmXXH64, AlgorithmBLAKE3, AlgorithmSHA256))
	}

	f := &Fingerprinter{
		algorithm: name,
		newHash:   newHash,
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Algorithm returns the canonical algorithm name
func (f *Fingerprinter) Algorithm() string {
	return f.algorithm
}

// Fingerprint digests one file. The fingerprint names the file by its
// relative path; the absolute path is only used for reading.
func (f *Fingerprinter) Fingerprint(ctx context.Context, path models.ResolvedPath) (models.FileFingerprint, error) {
	file, err := os.Open(path.Absolute)
	if err != nil {
		return models.FileFingerprint{}, lib.ErrChecksum(path.Relative, err)
	}
	defer func() { _ = file.Close() }()

	sum, err := f.Sum(ctx, file)
	if err != nil {
		return models.FileFingerprint{}, lib.ErrChecksum(path.Relative, err)
	}

	return models.FileFingerprint{
		Algorithm: f.algorithm,
		Checksum:  sum,
		FileName:  path.Relative,
	}, nil
}

// Sum digests a stream chunk by chunk and returns the lowercase hex digest
func (f *Fingerprinter) Sum(ctx context.Context, r io.Reader) (string, error) {
	h := f.newHash()
	h.Reset()

	buf := make([]byte, f.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := r.Read(buf)
		if n > 0 {
			// hash.Hash.Write never returns an error
			_, _ = h.Write(buf[:n])
			if f.progress != nil {
				f.progress(int64(n))
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintAll digests every file concurrently. The first failure cancels
// the remaining work. Results are in input order.
func (f *Fingerprinter) FingerprintAll(ctx context.Context, paths []models.ResolvedPath) ([]models.FileFingerprint, error) {
	results := make([]models.FileFingerprint, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			fp, err := f.Fingerprint(gctx, path)
			if err != nil {
				return err
			}
			results[i] = fp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
