package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/retailsight/internal/app"
	"github.com/ayusman/retailsight/internal/capture"
	"github.com/ayusman/retailsight/internal/detector"
	"github.com/ayusman/retailsight/internal/notify"
	"github.com/ayusman/retailsight/internal/report"
	"github.com/ayusman/retailsight/internal/server"
	"github.com/ayusman/retailsight/internal/store"
	"github.com/ayusman/retailsight/internal/tracking"
)

func person(trackID int, cx float64) detector.Detection {
	return detector.Detection{
		TrackID:    trackID,
		ClassID:    0,
		Label:      "person",
		Box:        detector.BBox{X1: cx - 30, Y1: 80, X2: cx + 30, Y2: 420},
		Confidence: 0.8,
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	require.NoError(t, err)
	defer s.Close()

	frames := capture.BlankFrames(12, 640, 480)
	defer capture.CloseFrames(frames)

	// Processed frames are 3, 6, 9 and 12; the line sits at x=339.
	objects := detector.NewMockObjectDetector().
		Then(person(1, 200)).
		Then(person(1, 400)).
		Then(person(1, 420), person(2, 500)).
		Then(person(1, 500), person(2, 520))

	var (
		mu        sync.Mutex
		published []tracking.CrossingEvent
	)
	events := server.NewEventsHandler(nil)
	stream := server.NewStreamHandler()

	application, err := app.New(app.Config{
		Source:   capture.NewMockSource(frames, false),
		Sink:     capture.NewMockSink(),
		Detector: objects,
		Store:    s,
		Notifier: notify.Multi{
			events,
			notify.SinkFunc(func(_ context.Context, ev tracking.CrossingEvent) error {
				mu.Lock()
				defer mu.Unlock()
				published = append(published, ev)
				return nil
			}),
		},
		SourceName: "entrance.mp4",
	})
	require.NoError(t, err)
	application.OnFrame(stream.Publish)

	stats, err := application.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, application.Count())
	assert.Equal(t, 12, stats.Frames)
	assert.Equal(t, 4, stats.Processed)
	require.Len(t, published, 2)
	assert.Equal(t, 1, published[0].IdentityID)
	assert.Equal(t, 2, published[1].IdentityID)
	assert.Equal(t, 2, published[1].Total)

	srv := server.New(server.Config{Store: s, Count: application.Count})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	runID := application.RunID()
	require.NotEmpty(t, runID)

	t.Run("ListRuns", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/runs")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Runs []struct {
				ID              string  `json:"id"`
				Source          string  `json:"source"`
				EntranceLineX   int     `json:"entrance_line_x"`
				FinishedAt      *string `json:"finished_at"`
				FramesProcessed int     `json:"frames_processed"`
				EntryCount      int     `json:"entry_count"`
			} `json:"runs"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Runs, 1)

		run := body.Runs[0]
		assert.Equal(t, runID, run.ID)
		assert.Equal(t, "entrance.mp4", run.Source)
		assert.Equal(t, 339, run.EntranceLineX)
		assert.NotNil(t, run.FinishedAt)
		assert.Equal(t, 4, run.FramesProcessed)
		assert.Equal(t, 2, run.EntryCount)
	})

	t.Run("RunEvents", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/runs/" + runID + "/events")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Events []struct {
				IdentityID int `json:"identity_id"`
				CustomerID int `json:"customer_Id"`
			} `json:"events"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Events, 2)
		assert.Equal(t, 1, body.Events[0].IdentityID)
		assert.Equal(t, 1, body.Events[0].CustomerID)
		assert.Equal(t, 2, body.Events[1].IdentityID)
		assert.Equal(t, 2, body.Events[1].CustomerID)
	})

	t.Run("Health", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/health")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
		assert.EqualValues(t, 2, body["customers"])
	})

	t.Run("Report", func(t *testing.T) {
		r := report.Build(stats, "entrance.mp4", filepath.Join(tmpDir, "output_video.mp4"), runID)
		path, err := report.Write(tmpDir, r)
		require.NoError(t, err)

		got, err := report.Read(path)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Statistics.TotalCustomers)
		assert.Equal(t, 4, got.Statistics.FramesProcessed)
		assert.Equal(t, runID, got.Metadata.RunID)
		require.Len(t, got.Entries, 2)
		assert.Equal(t, 6, got.Entries[0].Frame)
		assert.Equal(t, 9, got.Entries[1].Frame)
	})
}
