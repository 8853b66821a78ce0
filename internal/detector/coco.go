package detector

// COCO80 lists the class names of the 80-class COCO label set in index order.
// Ultralytics trackers emit these indices directly.
var COCO80 = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck",
	"boat", "traffic light", "fire hydrant", "stop sign", "parking meter", "bench",
	"bird", "cat", "dog", "horse", "sheep", "cow", "elephant", "bear", "zebra",
	"giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup",
	"fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush",
}

// coco91Gaps are the ids of the original 91-id COCO paper set that have no
// annotations and were dropped from the 80-class set.
var coco91Gaps = map[int]bool{12: true, 26: true, 29: true, 30: true, 45: true, 66: true, 68: true, 69: true, 71: true, 83: true}

// coco91To80 maps TensorFlow SSD class ids (1-based, 91-id set) to COCO80 indices.
var coco91To80 = func() map[int]int {
	m := make(map[int]int, len(COCO80))
	idx := 0
	for id := 1; id <= 90 && idx < len(COCO80); id++ {
		if coco91Gaps[id] {
			continue
		}
		m[id] = idx
		idx++
	}
	return m
}()

// COCOClasses returns the COCO80 set keyed by index.
func COCOClasses() map[int]string {
	classes := make(map[int]string, len(COCO80))
	for i, name := range COCO80 {
		classes[i] = name
	}
	return classes
}

// COCO91To80 translates an SSD class id to its COCO80 index.
func COCO91To80(id int) (int, bool) {
	idx, ok := coco91To80[id]
	return idx, ok
}
