// Package overlay draws tracking annotations onto frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/retailsight/internal/detector"
)

// Annotation colors.
var (
	Green  = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	Blue   = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	Red    = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	Yellow = color.RGBA{R: 255, G: 255, B: 0, A: 0}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// Colors for each kind of box.
var (
	CustomerColor = Green
	TableColor    = Blue
	OnZoneColor   = Green
	OffZoneColor  = Red
	LineColor     = Yellow
	HandColor     = Red
)

// HandConnections lists landmark index pairs forming the hand skeleton.
var HandConnections = [][2]int{
	{detector.Wrist, detector.ThumbCMC}, {detector.ThumbCMC, detector.ThumbMCP},
	{detector.ThumbMCP, detector.ThumbIP}, {detector.ThumbIP, detector.ThumbTip},
	{detector.Wrist, detector.IndexMCP}, {detector.IndexMCP, detector.IndexPIP},
	{detector.IndexPIP, detector.IndexDIP}, {detector.IndexDIP, detector.IndexTip},
	{detector.IndexMCP, detector.MiddleMCP}, {detector.MiddleMCP, detector.MiddlePIP},
	{detector.MiddlePIP, detector.MiddleDIP}, {detector.MiddleDIP, detector.MiddleTip},
	{detector.MiddleMCP, detector.RingMCP}, {detector.RingMCP, detector.RingPIP},
	{detector.RingPIP, detector.RingDIP}, {detector.RingDIP, detector.RingTip},
	{detector.RingMCP, detector.PinkyMCP}, {detector.Wrist, detector.PinkyMCP},
	{detector.PinkyMCP, detector.PinkyPIP}, {detector.PinkyPIP, detector.PinkyDIP},
	{detector.PinkyDIP, detector.PinkyTip},
}

// Box draws a bounding box with its label just below the bottom-left corner.
func Box(img *gocv.Mat, box detector.BBox, c color.RGBA, label string) {
	rect := box.Rect()
	gocv.Rectangle(img, rect, c, 2)
	if label != "" {
		gocv.PutText(img, label, image.Pt(rect.Min.X, rect.Max.Y+20), gocv.FontHersheySimplex, 0.6, c, 2)
	}
}

// CustomerCount draws the running total in the top-left corner.
func CustomerCount(img *gocv.Mat, count int) {
	gocv.PutText(img, CountLabel(count), image.Pt(20, 40), gocv.FontHersheySimplex, 1.0, Yellow, 2)
}

// CountLabel is the text drawn by CustomerCount.
func CountLabel(count int) string {
	return fmt.Sprintf("Total Customers: %d", count)
}

// EntranceLine draws the vertical entrance line across the full frame height.
func EntranceLine(img *gocv.Mat, x int) {
	gocv.Line(img, image.Pt(x, 0), image.Pt(x, img.Rows()), LineColor, 1)
}

// HandSkeleton draws hand landmarks and their connections.
func HandSkeleton(img *gocv.Mat, points []detector.Point2D) {
	if len(points) < detector.NumLandmarks {
		return
	}
	for _, conn := range HandConnections {
		gocv.Line(img, points[conn[0]].Image(), points[conn[1]].Image(), White, 2)
	}
	for _, p := range points {
		gocv.Circle(img, p.Image(), 3, Red, -1)
	}
}

// HandPoint draws the smoothed hand position.
func HandPoint(img *gocv.Mat, p detector.Point2D) {
	gocv.Circle(img, p.Image(), 5, HandColor, -1)
}

// ItemColor returns the box color for an item. Items are flagged only once
// a table has been seen and the item is not on it.
func ItemColor(tableSeen, onZone bool) color.RGBA {
	if tableSeen && !onZone {
		return OffZoneColor
	}
	return OnZoneColor
}
