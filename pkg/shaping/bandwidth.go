package shaping

import (
	"context"
	"io"
	"net/http"
	"time"
)

// throttleChunkSize is the unit of release for bandwidth-shaped writes.
const throttleChunkSize = 4096

// writeThrottled streams body to w on a token-bucket schedule: BurstBytes
// go out immediately, then chunks are released at BytesPerSecond. The write
// aborts when the request context is cancelled.
func writeThrottled(ctx context.Context, w io.Writer, body []byte, cfg *BandwidthConfig) (int, error) {
	if cfg.BytesPerSecond <= 0 {
		return w.Write(body)
	}

	tokens := float64(cfg.BurstBytes)
	rate := float64(cfg.BytesPerSecond)
	last := time.Now()
	written := 0

	for len(body) > 0 {
		now := time.Now()
		tokens += now.Sub(last).Seconds() * rate
		last = now
		if ceiling := float64(cfg.BurstBytes) + rate; tokens > ceiling {
			tokens = ceiling
		}

		chunk := throttleChunkSize
		if chunk > len(body) {
			chunk = len(body)
		}

		if tokens < float64(chunk) {
			// Wait until enough tokens accrue for the next chunk.
			wait := time.Duration((float64(chunk) - tokens) / rate * float64(time.Second))
			if err := sleep(ctx, wait); err != nil {
				return written, err
			}
			continue
		}

		n, err := w.Write(body[:chunk])
		written += n
		if err != nil {
			return written, err
		}
		tokens -= float64(n)
		body = body[n:]

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}

	return written, nil
}
