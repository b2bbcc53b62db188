package audio

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Analysis frame geometry shared by every descriptor
const (
	FrameLength = 2048
	HopLength   = 512
)

// frameCount is the number of centered frames covering n samples
func frameCount(n, hop int) int {
	return 1 + n/hop
}

// frame copies the centered frame t of y into dst, zero padding past
// either end of the signal.
func frame(dst, y []float64, t, hop int) {
	start := t*hop - len(dst)/2
	for i := range dst {
		j := start + i
		if j < 0 || j >= len(y) {
			dst[i] = 0
			continue
		}
		dst[i] = y[j]
	}
}

// hann returns a periodic Hann window
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// spectrogram holds the magnitude of every frame's positive-frequency bins
type spectrogram struct {
	mag   [][]float64
	freqs []float64
}

// power returns |X|^2 for frame t, bin k
func (s *spectrogram) power(t, k int) float64 {
	m := s.mag[t][k]
	return m * m
}

func (s *spectrogram) frames() int { return len(s.mag) }

func (s *spectrogram) bins() int { return len(s.freqs) }

// stft computes a Hann-windowed short-time Fourier transform of y
func stft(y []float64, sampleRate, nFFT, hop int) *spectrogram {
	fft := fourier.NewFFT(nFFT)
	window := hann(nFFT)
	nBins := nFFT/2 + 1

	freqs := make([]float64, nBins)
	for k := range freqs {
		freqs[k] = float64(k) * float64(sampleRate) / float64(nFFT)
	}

	n := frameCount(len(y), hop)
	mag := make([][]float64, n)
	buf := make([]float64, nFFT)
	coeffs := make([]complex128, nBins)
	for t := 0; t < n; t++ {
		frame(buf, y, t, hop)
		for i := range buf {
			buf[i] *= window[i]
		}
		coeffs = fft.Coefficients(coeffs, buf)
		row := make([]float64, nBins)
		for k, c := range coeffs {
			row[k] = cmplx.Abs(c)
		}
		mag[t] = row
	}

	return &spectrogram{mag: mag, freqs: freqs}
}
