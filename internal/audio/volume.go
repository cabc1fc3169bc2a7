package audio

import (
	"encoding/binary"
	"math"
)

// Metric selects the volume statistic computed per block.
type Metric string

const (
	// MetricRMS is the root-mean-square of the normalized samples.
	MetricRMS Metric = "rms"
	// MetricPeak is the largest absolute normalized sample.
	MetricPeak Metric = "peak"
)

// BlockVolume computes the activity level of a block, normalized to [0, 1]
// independent of block size. An empty block has volume 0.
func BlockVolume(b *Block, metric Metric) float64 {
	count := b.SampleCount()
	if count == 0 {
		return 0
	}

	switch metric {
	case MetricPeak:
		var peak float64
		for i := 0; i < count; i++ {
			v := int16(binary.LittleEndian.Uint16(b.Data[i*BytesPerSample:]))
			if abs := math.Abs(float64(v)); abs > peak {
				peak = abs
			}
		}
		return peak / MaxSampleValue
	default:
		var sumSquares float64
		for i := 0; i < count; i++ {
			v := float64(int16(binary.LittleEndian.Uint16(b.Data[i*BytesPerSample:])))
			sumSquares += v * v
		}
		return math.Sqrt(sumSquares/float64(count)) / MaxSampleValue
	}
}

// VolumeSeries computes the per-block volume of a sample stream, splitting it
// into blocks of blockFrames frames. Used by the CSV export.
func VolumeSeries(samples []int16, channels, blockFrames int, metric Metric) []float64 {
	if channels < 1 || blockFrames < 1 {
		return nil
	}
	samplesPerBlock := blockFrames * channels

	var series []float64
	for off := 0; off < len(samples); off += samplesPerBlock {
		end := min(off+samplesPerBlock, len(samples))
		chunk := samples[off:end]

		data := make([]byte, len(chunk)*BytesPerSample)
		for i, s := range chunk {
			binary.LittleEndian.PutUint16(data[i*BytesPerSample:], uint16(s))
		}
		series = append(series, BlockVolume(&Block{Data: data, Channels: channels}, metric))
	}
	return series
}
