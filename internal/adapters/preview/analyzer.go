// Package preview estimates a track's energy from its 30-second MP3 preview.
package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultMaxBytes = 2 << 20
	fullScale       = 32768.0
)

var errNoSamples = errors.New("preview contains no samples")

// Analyzer downloads previews and reports their RMS loudness as an energy value in [0, 1].
type Analyzer struct {
	httpClient *http.Client
	maxBytes   int64
}

var _ ports.PreviewAnalyzer = (*Analyzer)(nil)

// NewAnalyzer builds an analyzer; zero values select the defaults.
func NewAnalyzer(timeout time.Duration, maxBytes int64) *Analyzer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return NewWithHTTPClient(&http.Client{Timeout: timeout}, maxBytes)
}

func NewWithHTTPClient(hc *http.Client, maxBytes int64) *Analyzer {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Analyzer{httpClient: hc, maxBytes: maxBytes}
}

// Energy fetches previewURL and decodes it. Only the first maxBytes of the body are read.
func (a *Analyzer) Energy(ctx context.Context, previewURL string) (float64, error) {
	if previewURL == "" {
		return 0, &domain.ValidationError{Field: "preview_url", Reason: "is empty"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, previewURL, nil)
	if err != nil {
		return 0, fmt.Errorf("preview: build request: %w", err)
	}
	// #nosec G107 -- URL comes from a catalog API response
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, &domain.TransportError{Op: "preview fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &domain.TransportError{Op: "preview fetch", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	return energyFromMP3(io.LimitReader(resp.Body, a.maxBytes))
}

func energyFromMP3(r io.Reader) (float64, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return 0, fmt.Errorf("preview: decode: %w", err)
	}

	var acc rmsAccumulator
	buf := make([]byte, 4096)
	for {
		n, err := decoder.Read(buf)
		if n > 0 {
			acc.addPCM(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, fmt.Errorf("preview: read: %w", err)
		}
	}
	return acc.energy()
}

// rmsAccumulator sums squares of signed 16-bit little-endian samples.
type rmsAccumulator struct {
	sumSquares float64
	count      float64
}

func (r *rmsAccumulator) addPCM(pcm []byte) {
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		v := float64(sample)
		r.sumSquares += v * v
		r.count++
	}
}

func (r *rmsAccumulator) energy() (float64, error) {
	if r.count == 0 {
		return 0, errNoSamples
	}
	e := math.Sqrt(r.sumSquares/r.count) / fullScale
	return math.Max(0, math.Min(1, e)), nil
}
