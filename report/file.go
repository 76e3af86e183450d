package report

import (
	"fmt"
	"os"

	"github.com/screwyprof/beaconincome/collector"
	"github.com/screwyprof/beaconincome/income"
)

// SaveFile writes the rendered result to path, replacing any previous content
func SaveFile(path string, format Format, res collector.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	return Write(f, format, res)
}

// SaveSamples writes the raw dump to path
func SaveSamples(path string, samples []income.Sample) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	return WriteSamples(f, samples)
}
