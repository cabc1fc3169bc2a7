// Package export converts finalized recordings into CSV for offline analysis.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/opencapture/soundtrap/internal/audio"
	"github.com/opencapture/soundtrap/internal/recording"
)

// Options controls the CSV export.
type Options struct {
	BlockFrames int          // frames per volume block; 0 skips the volume table
	Metric      audio.Metric // volume metric for the volume table
}

// WriteCSV writes the samples of a WAV file as CSV. Each row is one frame:
// a time column followed by one column per channel. When opts.BlockFrames is
// set, a per-block volume table follows, separated by a blank line.
func WriteCSV(wavPath string, w io.Writer, opts Options) error {
	samples, info, err := recording.ReadWAV(wavPath)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)

	header := []string{"time_s"}
	for ch := 1; ch <= info.Channels; ch++ {
		header = append(header, fmt.Sprintf("channel_%d", ch))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, 1+info.Channels)
	for frame := 0; frame < info.Frames; frame++ {
		row[0] = strconv.FormatFloat(float64(frame)/float64(info.SampleRate), 'f', 6, 64)
		for ch := 0; ch < info.Channels; ch++ {
			row[1+ch] = strconv.Itoa(int(samples[frame*info.Channels+ch]))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	if opts.BlockFrames > 0 {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return fmt.Errorf("write separator: %w", err)
		}
		if err := writeVolumeTable(w, samples, info, opts); err != nil {
			return err
		}
	}
	return nil
}

// ExportFile writes the CSV next to the WAV file, swapping the extension.
// It returns the path of the written file.
func ExportFile(wavPath string, opts Options) (string, error) {
	csvPath := strings.TrimSuffix(wavPath, recording.PayloadSuffix) + ".csv"

	f, err := os.Create(csvPath)
	if err != nil {
		return "", fmt.Errorf("create csv file: %w", err)
	}

	if err := WriteCSV(wavPath, f, opts); err != nil {
		_ = f.Close()
		_ = os.Remove(csvPath)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close csv file: %w", err)
	}
	return csvPath, nil
}

func writeVolumeTable(w io.Writer, samples []int16, info *recording.WAVInfo, opts Options) error {
	metric := opts.Metric
	if metric == "" {
		metric = audio.MetricRMS
	}
	series := audio.VolumeSeries(samples, info.Channels, opts.BlockFrames, metric)

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"block", "time_s", string(metric)}); err != nil {
		return fmt.Errorf("write volume header: %w", err)
	}

	blockSeconds := float64(opts.BlockFrames) / float64(info.SampleRate)
	for i, v := range series {
		err := cw.Write([]string{
			strconv.Itoa(i),
			strconv.FormatFloat(float64(i)*blockSeconds, 'f', 6, 64),
			strconv.FormatFloat(v, 'f', 6, 64),
		})
		if err != nil {
			return fmt.Errorf("write volume row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush volume table: %w", err)
	}
	return nil
}
