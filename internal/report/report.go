// Package report writes the end-of-run analysis artifacts: a JSON summary
// and an HTML chart of cumulative customer entries.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ayusman/retailsight/internal/app"
)

// File names written into the output directory.
const (
	ReportFile = "analysis_report.json"
	ChartFile  = "entries.html"
)

// DateLayout formats Metadata.ProcessingDate.
const DateLayout = "2006-01-02 15:04:05"

// Report is the end-of-run summary written as analysis_report.json.
type Report struct {
	Metadata   Metadata         `json:"metadata"`
	Statistics Statistics       `json:"statistics"`
	Entries    []app.EntryPoint `json:"entries"`
}

// Metadata describes when and on what the run was made.
type Metadata struct {
	ProcessingDate    string  `json:"processing_date"`
	ProcessingSeconds float64 `json:"processing_time_seconds"`
	InputVideo        string  `json:"input_video"`
	OutputVideo       string  `json:"output_video,omitempty"`
	RunID             string  `json:"run_id,omitempty"`
}

// Statistics holds the run counters.
type Statistics struct {
	TotalCustomers      int     `json:"total_customers"`
	TotalFrames         int     `json:"total_frames"`
	FramesProcessed     int     `json:"total_frames_processed"`
	ProcessingFPS       float64 `json:"processing_fps"`
	DetectorErrors      int     `json:"detector_errors"`
	MalformedDetections int     `json:"malformed_detections"`
	Snapshots           int     `json:"snapshots"`
}

// Build assembles a report from the run counters.
func Build(stats app.Stats, input, output, runID string) Report {
	entries := stats.Timeline
	if entries == nil {
		entries = []app.EntryPoint{}
	}
	return Report{
		Metadata: Metadata{
			ProcessingDate:    stats.Finished.Format(DateLayout),
			ProcessingSeconds: round2(stats.Duration().Seconds()),
			InputVideo:        input,
			OutputVideo:       output,
			RunID:             runID,
		},
		Statistics: Statistics{
			TotalCustomers:      stats.Entries,
			TotalFrames:         stats.Frames,
			FramesProcessed:     stats.Processed,
			ProcessingFPS:       round2(stats.ProcessingFPS()),
			DetectorErrors:      stats.DetectorErrors,
			MalformedDetections: stats.MalformedDetections,
			Snapshots:           stats.Snapshots,
		},
		Entries: entries,
	}
}

// Write saves the report as indented JSON in dir and returns its path.
func Write(dir string, r Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	path := filepath.Join(dir, ReportFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Read loads a report written by Write.
func Read(path string) (Report, error) {
	var r Report
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("read report: %w", err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}

// WriteChart renders the cumulative entry chart into dir and returns its path.
func WriteChart(dir string, r Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(dir, ChartFile)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create chart: %w", err)
	}
	defer f.Close()

	if err := RenderChart(f, r); err != nil {
		return "", err
	}
	return path, nil
}

// RenderChart draws cumulative entries against frame number. The series
// starts at frame 0 with no customers and ends at the last frame seen.
func RenderChart(w io.Writer, r Report) error {
	frames := []int{0}
	totals := []opts.LineData{{Value: 0}}
	for _, e := range r.Entries {
		frames = append(frames, e.Frame)
		totals = append(totals, opts.LineData{Value: e.Total})
	}
	if last := r.Statistics.TotalFrames; last > frames[len(frames)-1] {
		frames = append(frames, last)
		totals = append(totals, opts.LineData{Value: r.Statistics.TotalCustomers})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Customer Entries", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Customer Entries",
			Subtitle: fmt.Sprintf("input=%s total=%d", r.Metadata.InputVideo, r.Statistics.TotalCustomers),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Customers", NameLocation: "middle", NameGap: 30}),
	)
	line.SetXAxis(frames).AddSeries("entries", totals)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
