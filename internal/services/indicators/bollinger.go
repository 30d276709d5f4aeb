package indicators

import (
	"fmt"
	"math"

	"AaveRisk/internal/domain/models"
)

const (
	DefaultWindow     = 20
	DefaultMultiplier = 2.0
)

// Bollinger is a streaming Bollinger Bands indicator over the last window
// samples. Samples must be fed oldest first.
type Bollinger struct {
	window int
	k      float64

	buf   []float64
	pos   int
	count int
}

// NewBollinger returns an indicator with the given window and standard deviation multiplier.
func NewBollinger(window int, k float64) (*Bollinger, error) {
	if window < 1 {
		return nil, fmt.Errorf("bollinger window must be >= 1, got %d", window)
	}
	if k < 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return nil, fmt.Errorf("bollinger multiplier must be finite and >= 0, got %v", k)
	}
	return &Bollinger{window: window, k: k, buf: make([]float64, window)}, nil
}

// Update adds one sample, evicting the oldest once the window is full.
func (b *Bollinger) Update(v float64) {
	b.buf[b.pos] = v
	b.pos = (b.pos + 1) % b.window
	if b.count < b.window {
		b.count++
	}
}

// Ready reports whether a full window has been seen.
func (b *Bollinger) Ready() bool { return b.count == b.window }

// Band returns the band over the current window. ok is false until Ready.
// The population variance is taken over deviations from the mean, so prices
// far from zero keep their spread.
func (b *Bollinger) Band() (models.BollingerBand, bool) {
	if !b.Ready() {
		return models.BollingerBand{}, false
	}
	n := float64(b.window)
	var sum float64
	for _, v := range b.buf {
		sum += v
	}
	mean := sum / n
	var m2 float64
	for _, v := range b.buf {
		d := v - mean
		m2 += d * d
	}
	sd := math.Sqrt(m2 / n)
	return models.BollingerBand{
		Lower:  mean - b.k*sd,
		Middle: mean,
		Upper:  mean + b.k*sd,
	}, true
}

// Reset drops all samples.
func (b *Bollinger) Reset() {
	for i := range b.buf {
		b.buf[i] = 0
	}
	b.pos, b.count = 0, 0
}

// BollingerBands returns the band of the last window closes, oldest first.
// ok is false when there are fewer than window closes or the parameters are invalid.
func BollingerBands(closes []float64, window int, k float64) (models.BollingerBand, bool) {
	ind, err := NewBollinger(window, k)
	if err != nil {
		return models.BollingerBand{}, false
	}
	if len(closes) < window {
		return models.BollingerBand{}, false
	}
	for _, c := range closes[len(closes)-window:] {
		ind.Update(c)
	}
	return ind.Band()
}

// ClampLower floors a negative lower bound at zero.
func ClampLower(b models.BollingerBand) models.BollingerBand {
	if b.Lower < 0 {
		b.Lower = 0
	}
	return b
}
