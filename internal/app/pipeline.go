package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cheggaaa/pb/v3"
	"gocv.io/x/gocv"

	"github.com/ayusman/retailsight/internal/capture"
	"github.com/ayusman/retailsight/internal/detector"
	"github.com/ayusman/retailsight/internal/overlay"
	"github.com/ayusman/retailsight/internal/store"
	"github.com/ayusman/retailsight/internal/tracking"
)

const progressTemplate = `{{ counters . }} {{ bar . "[" "=" ">" " " "]" }} {{ percent . }} {{ etime . }} {{ rtime . "ETA %s" }}`

// Run processes the source until it ends, ctx is cancelled or Stop is
// called. Setup failures are returned before any frame is read. A read
// failure other than end of stream ends the run with an error; the counters
// gathered up to that point are still returned.
//
// Pipeline logic:
//  1. Read a frame and increment the frame counter
//  2. Discard it unless counter % FrameSkip == 0
//  3. Detect and track objects; a detector error skips tracking for the frame
//  4. Update the table zone from every table detection
//  5. Check customers against the entrance line and publish new entries
//  6. Record item zone membership
//  7. Smooth hand positions when a customer is present
//  8. Annotate, write to the sink, snapshot and notify frame observers
func (a *App) Run(ctx context.Context) (Stats, error) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return Stats{}, ErrAlreadyRunning
	}
	a.running = true
	a.stats = Stats{Started: a.now()}
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	if err := a.setup(); err != nil {
		return Stats{}, err
	}
	log.Println("Detection pipeline started")

	var bar *pb.ProgressBar
	if total := a.config.Source.FrameCount(); a.config.Progress && total > 0 {
		bar = pb.ProgressBarTemplate(progressTemplate).Start(total)
	}

	runErr := a.loop(ctx, bar)

	if bar != nil {
		bar.Finish()
	}
	a.teardown()

	a.mu.Lock()
	a.stats.Finished = a.now()
	stats := a.stats.clone()
	runID := a.runID
	a.mu.Unlock()

	if a.config.Store != nil && runID != "" {
		totals := store.RunTotals{
			FramesTotal:     stats.Frames,
			FramesProcessed: stats.Processed,
			EntryCount:      stats.Entries,
		}
		if err := a.config.Store.Runs().Finish(runID, totals, stats.Finished); err != nil {
			log.Printf("[store] Error finishing run %s: %v", runID, err)
		}
	}

	log.Printf("Detection pipeline stopped: %d frames, %d processed, %d customers",
		stats.Frames, stats.Processed, stats.Entries)
	return stats, runErr
}

func (a *App) loop(ctx context.Context, bar *pb.ProgressBar) error {
	frameNum := 0
	for {
		select {
		case <-ctx.Done():
			log.Println("Stop requested")
			return nil
		case <-a.stopCh:
			log.Println("Stop requested")
			return nil
		default:
		}

		frame, err := a.config.Source.ReadFrame()
		if errors.Is(err, capture.ErrEndOfStream) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame %d: %w", frameNum+1, err)
		}

		frameNum++
		if bar != nil {
			bar.Increment()
		}

		if frameNum%a.config.FrameSkip != 0 {
			a.mu.Lock()
			a.stats.Frames++
			a.stats.Skipped++
			a.mu.Unlock()
			frame.Close()
			continue
		}

		a.mu.Lock()
		a.stats.Frames++
		a.stats.Processed++
		processed := a.stats.Processed
		a.mu.Unlock()

		a.processFrame(ctx, frame, frameNum, processed)
		frame.Close()
	}
}

// tracked pairs a detection with the identity it resolved to.
type tracked struct {
	det detector.Detection
	id  *tracking.Identity
}

// processFrame runs tracking and annotation on one processed frame.
// frameNum is the 1-indexed position in the stream; processed counts
// processed frames and is the clock for eviction.
func (a *App) processFrame(ctx context.Context, frame *gocv.Mat, frameNum, processed int) {
	detections, err := a.config.Detector.DetectAndTrack(frame)
	if err != nil {
		log.Printf("[pipeline] Error detecting objects on frame %d: %v", frameNum, err)
		a.mu.Lock()
		a.stats.DetectorErrors++
		a.mu.Unlock()
		a.finishFrame(frame, frameNum)
		return
	}

	var tables, others []tracked
	malformed := 0
	for _, d := range detections {
		if !d.Box.Valid() {
			malformed++
			continue
		}
		id := a.registry.Observe(d, processed)
		if id == nil {
			continue
		}
		if id.Role == tracking.RoleTable {
			tables = append(tables, tracked{det: d, id: id})
		} else {
			others = append(others, tracked{det: d, id: id})
		}
	}
	if malformed > 0 {
		log.Printf("[pipeline] Dropped %d malformed detections on frame %d", malformed, frameNum)
		a.mu.Lock()
		a.stats.MalformedDetections += malformed
		a.mu.Unlock()
	}

	// Tables first so item membership does not depend on detection order.
	for _, t := range tables {
		a.zone.Update(t.det.Box)
	}

	customerPresent := false
	for _, t := range others {
		switch {
		case t.id.Role == tracking.RoleCustomer:
			customerPresent = true
			if ev, ok := a.crossing.CheckAndRegister(t.id.ID, t.det.Box, a.now()); ok {
				t.id.Crossed = true
				a.recordEntry(ctx, ev, frameNum)
			}
		case t.id.Role.IsItem():
			a.registry.SetZoneMembership(t.id.ID, a.zone.ContainsBottomEdge(t.det.Box))
		}
	}

	var hands []detector.HandLandmarks
	if customerPresent && a.config.Hands != nil {
		hands, err = a.config.Hands.Detect(frame)
		if err != nil {
			log.Printf("[pipeline] Error detecting hands on frame %d: %v", frameNum, err)
			a.mu.Lock()
			a.stats.HandErrors++
			a.mu.Unlock()
			hands = nil
		}
	}

	// Drawing starts only after both detectors have seen the clean frame.
	for _, t := range tables {
		overlay.Box(frame, t.det.Box, overlay.TableColor, t.id.Label)
	}
	_, tableSeen := a.zone.Current()
	count := a.Count()
	for _, t := range others {
		if t.id.Role == tracking.RoleCustomer {
			overlay.Box(frame, t.det.Box, overlay.CustomerColor, fmt.Sprintf("%s %d", t.id.Label, count))
			continue
		}
		overlay.Box(frame, t.det.Box, overlay.ItemColor(tableSeen, t.id.OnZone), t.id.Label)
	}

	a.smoother.BeginFrame(processed)
	for i := range hands {
		hand := &hands[i]
		if !hand.Valid() {
			continue
		}
		anchor := hand.Anchor(a.width, a.height)
		handID := a.smoother.Assign(anchor)
		smoothed := a.smoother.PushAndSmooth(handID, anchor)
		overlay.HandSkeleton(frame, hand.Denormalize(a.width, a.height))
		overlay.HandPoint(frame, smoothed)
	}

	a.finishFrame(frame, frameNum)

	a.registry.Evict(processed)
	a.smoother.Evict(processed)
}

// finishFrame draws the count and entrance line, writes the frame out,
// takes a snapshot when one is due and hands the frame to observers.
func (a *App) finishFrame(frame *gocv.Mat, frameNum int) {
	overlay.CustomerCount(frame, a.Count())
	overlay.EntranceLine(frame, a.crossing.LineX())

	if a.config.Sink != nil {
		if err := a.config.Sink.Write(frame); err != nil {
			log.Printf("[pipeline] Error writing frame %d: %v", frameNum, err)
		}
	}

	if a.snapshots != nil {
		snap, ok, err := a.snapshots.MaybeCapture(frame)
		if err != nil {
			log.Printf("[pipeline] Error saving snapshot: %v", err)
		}
		if ok {
			a.recordSnapshot(snap, frameNum)
		}
	}

	a.mu.RLock()
	observers := a.frameObservers
	a.mu.RUnlock()
	for _, fn := range observers {
		fn(frame)
	}
}

func (a *App) recordEntry(ctx context.Context, ev tracking.CrossingEvent, frameNum int) {
	a.mu.Lock()
	a.count = ev.Total
	a.stats.Entries++
	a.stats.Timeline = append(a.stats.Timeline, EntryPoint{
		Frame:      frameNum,
		IdentityID: ev.IdentityID,
		Total:      ev.Total,
		At:         ev.Timestamp,
	})
	observers := a.entryObservers
	a.mu.Unlock()

	log.Printf("Customer entered: track %d, total %d", ev.IdentityID, ev.Total)

	if err := a.notifier.Publish(ctx, ev); err != nil {
		log.Printf("[notify] Error publishing entry %d: %v", ev.Total, err)
	}
	for _, fn := range observers {
		fn(ev)
	}
}

func (a *App) recordSnapshot(snap capture.Snapshot, frameNum int) {
	a.mu.Lock()
	a.stats.Snapshots++
	runID := a.runID
	a.mu.Unlock()

	if a.config.Store == nil || runID == "" {
		return
	}
	err := a.config.Store.Snapshots().Create(&store.Snapshot{
		RunID:       runID,
		Path:        snap.Path,
		FrameNumber: frameNum,
		CapturedAt:  snap.CapturedAt,
	})
	if err != nil {
		log.Printf("[store] Error recording snapshot %s: %v", snap.Path, err)
	}
}
