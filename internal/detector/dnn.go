package detector

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

// DNN tracking defaults.
const (
	DefaultMaxNoMatch   = 15
	DefaultIoUThreshold = 0.1
)

// DNNDetector implements ObjectDetector with an OpenCV DNN SSD network.
// The network has no notion of identity, so track ids come from an
// IdentityAssigner.
type DNNDetector struct {
	config   Config
	net      gocv.Net
	assigner *IdentityAssigner
}

// NewDNNDetector loads the model and config files named in config.
func NewDNNDetector(config Config) (*DNNDetector, error) {
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	if _, err := os.Stat(config.ModelConfig); err != nil {
		return nil, fmt.Errorf("model config: %w", err)
	}

	net := gocv.ReadNet(config.ModelPath, config.ModelConfig)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network %s", config.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}

	return &DNNDetector{
		config:   config,
		net:      net,
		assigner: NewIdentityAssigner(DefaultMaxNoMatch, DefaultIoUThreshold),
	}, nil
}

// DetectAndTrack runs the network on the frame and assigns track ids.
func (d *DNNDetector) DetectAndTrack(frame *gocv.Mat) ([]Detection, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	blob := gocv.BlobFromImage(*frame, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	if output.Total()%7 != 0 {
		return nil, fmt.Errorf("unexpected output size %d", output.Total())
	}

	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	width := float64(frame.Cols())
	height := float64(frame.Rows())

	var detections []Detection
	for i := 0; i < rows.Rows(); i++ {
		confidence := float64(rows.GetFloatAt(i, 2))
		if confidence < d.config.MinConfidence {
			continue
		}
		classID, ok := COCO91To80(int(rows.GetFloatAt(i, 1)))
		if !ok {
			continue
		}

		box := BBox{
			X1: float64(rows.GetFloatAt(i, 3)) * width,
			Y1: float64(rows.GetFloatAt(i, 4)) * height,
			X2: float64(rows.GetFloatAt(i, 5)) * width,
			Y2: float64(rows.GetFloatAt(i, 6)) * height,
		}.Clamp(frame.Cols(), frame.Rows())
		if !box.Valid() {
			continue
		}

		detections = append(detections, Detection{
			ClassID:    classID,
			Label:      COCO80[classID],
			Box:        box,
			Confidence: confidence,
		})
	}

	if err := d.assigner.Assign(detections); err != nil {
		return nil, fmt.Errorf("assign tracks: %w", err)
	}

	return detections, nil
}

// Classes returns the COCO80 label set.
func (d *DNNDetector) Classes() map[int]string {
	return COCOClasses()
}

// Close releases the network.
func (d *DNNDetector) Close() error {
	return d.net.Close()
}
