package hid

import (
	"context"
	"time"

	"github.com/ardnew/maghand/pkg"
)

// OutputSource reads packets from an OUT endpoint.
type OutputSource interface {
	Read(ctx context.Context, addr uint8, buf []byte) (int, error)
}

// readRetry is the pause after a failed endpoint read.
const readRetry = 10 * time.Millisecond

// Reader passes output reports from the interrupt OUT endpoint to a
// RequestHandler.
type Reader struct {
	src     OutputSource
	addr    uint8
	handler RequestHandler
	buf     [MaxPacketSize]byte
}

// NewReader creates a reader for endpoint addr.
func NewReader(src OutputSource, addr uint8, handler RequestHandler) *Reader {
	return &Reader{src: src, addr: addr, handler: handler}
}

// Run reads output reports until ctx is cancelled. Read errors are logged
// and the read is retried.
func (r *Reader) Run(ctx context.Context) error {
	for {
		n, err := r.src.Read(ctx, r.addr, r.buf[:])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			pkg.LogDebug(pkg.ComponentHID, "output report read", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(readRetry):
			}
			continue
		}
		if n == 0 {
			continue
		}
		if err := r.handler.SetReport(ReportTypeOutput, 0, r.buf[:n]); err != nil {
			pkg.LogWarn(pkg.ComponentHID, "output report rejected", "error", err)
		}
	}
}
