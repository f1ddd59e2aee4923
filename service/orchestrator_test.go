package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ajgcsol/videopipeline/config"
	"github.com/ajgcsol/videopipeline/models"
	"github.com/ajgcsol/videopipeline/repository"
	"github.com/google/uuid"
)

type fakeVideoRepo struct {
	mu         sync.Mutex
	videos     []*models.Video
	failCreate bool
}

var _ repository.VideoRepository = (*fakeVideoRepo)(nil)

func (r *fakeVideoRepo) Create(v *models.Video) error {
	if r.failCreate {
		return fmt.Errorf("simulated database failure")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	r.videos = append(r.videos, v)
	return nil
}

func (r *fakeVideoRepo) GetByID(id uuid.UUID) (*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.videos {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (r *fakeVideoRepo) Update(v *models.Video) error { return nil }
func (r *fakeVideoRepo) Delete(id uuid.UUID) error    { return nil }
func (r *fakeVideoRepo) List(limit, offset int) ([]*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.videos, nil
}
func (r *fakeVideoRepo) Count() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.videos)), nil
}
func (r *fakeVideoRepo) GetByAssetID(assetID string) (*models.Video, error) {
	return nil, fmt.Errorf("not found")
}
func (r *fakeVideoRepo) GetByStatus(status string, limit, offset int) ([]*models.Video, error) {
	return nil, nil
}
func (r *fakeVideoRepo) ListWithPagination(page, pageSize int32) ([]*models.Video, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.videos, int64(len(r.videos)), nil
}
func (r *fakeVideoRepo) CountByStatus(status string) (int64, error) { return 0, nil }
func (r *fakeVideoRepo) UpdateStatus(id uuid.UUID, status string) error {
	return nil
}

type fakeSpeakerRepo struct {
	mu      sync.Mutex
	records []*models.SpeakerRecord
}

var _ repository.SpeakerRepository = (*fakeSpeakerRepo)(nil)

func (r *fakeSpeakerRepo) Create(s *models.SpeakerRecord) error         { return nil }
func (r *fakeSpeakerRepo) GetByID(id uuid.UUID) (*models.SpeakerRecord, error) {
	return nil, fmt.Errorf("not found")
}
func (r *fakeSpeakerRepo) Update(s *models.SpeakerRecord) error { return nil }
func (r *fakeSpeakerRepo) Delete(id uuid.UUID) error            { return nil }
func (r *fakeSpeakerRepo) List(limit, offset int) ([]*models.SpeakerRecord, error) {
	return nil, nil
}
func (r *fakeSpeakerRepo) Count() (int64, error) { return 0, nil }
func (r *fakeSpeakerRepo) GetByVideoID(videoID uuid.UUID) ([]*models.SpeakerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records, nil
}
func (r *fakeSpeakerRepo) CreateBatch(records []*models.SpeakerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
	return nil
}
func (r *fakeSpeakerRepo) DeleteByVideoID(videoID uuid.UUID) error { return nil }

type fakeCaptionStore struct {
	doc string
	err error
}

func (s *fakeCaptionStore) FetchCaptionDocument(ctx context.Context, url string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.doc, nil
}

// singleSpeakerVTT parses to two sentences: estimated speaker count 1.
const singleSpeakerVTT = "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nSpeaker 1: Hello. How are you?\n"

// multiSpeakerVTT parses to six sentences: estimated speaker count 2.
const multiSpeakerVTT = "WEBVTT\n\n" +
	"00:00:01.000 --> 00:00:02.000\nSpeaker 1: Welcome everyone to the lecture.\n\n" +
	"00:00:02.000 --> 00:00:04.000\nSpeaker 2: Thank you for the introduction.\n\n" +
	"00:00:04.000 --> 00:00:06.000\nSpeaker 1: Today we cover pipelines. They have stages.\n\n" +
	"00:00:06.000 --> 00:00:08.000\nSpeaker 2: That sounds great. Where do we start?\n"

type pipelineFixture struct {
	orchestrator *Orchestrator
	storage      *fakeStorage
	videoRepo    *fakeVideoRepo
	speakerRepo  *fakeSpeakerRepo
	completed    chan models.PipelineResult
	failed       chan string
}

func newPipelineFixture(t *testing.T, mutate func(cfg *config.Config, storage *fakeStorage, client *scriptedStatusClient, captions *fakeCaptionStore, videos *fakeVideoRepo)) *pipelineFixture {
	t.Helper()

	cfg := testConfig()
	cfg.Pipeline.PollInterval = time.Millisecond
	cfg.Pipeline.PollTimeout = time.Second
	cfg.Pipeline.CompletionDelay = time.Millisecond

	storage := &fakeStorage{partSize: cfg.Pipeline.PartSize, consume: true}
	client := &scriptedStatusClient{statuses: []*models.RemoteAssetStatus{
		{
			AssetID:    "asset-1",
			PlaybackID: "play-1",
			Status:     models.AssetStatusReady,
			Thumbnails: models.ThumbnailSet{Small: "http://cdn/thumb-s.jpg", Large: "http://cdn/thumb-l.jpg"},
			Captions:   models.CaptionRefs{VTTURL: "http://cdn/captions.vtt", SRTURL: "http://cdn/captions.srt"},
		},
	}}
	captions := &fakeCaptionStore{doc: singleSpeakerVTT}
	videoRepo := &fakeVideoRepo{}
	speakerRepo := &fakeSpeakerRepo{}

	if mutate != nil {
		mutate(cfg, storage, client, captions, videoRepo)
	}

	completed := make(chan models.PipelineResult, 1)
	failed := make(chan string, 1)

	orchestrator := NewOrchestrator(
		cfg,
		NewUploadTransport(storage, cfg, quietLogger()),
		NewPoller(client, cfg, quietLogger()),
		captions,
		videoRepo,
		speakerRepo,
		quietLogger(),
		func(result models.PipelineResult) { completed <- result },
		func(message string) { failed <- message },
	)

	return &pipelineFixture{
		orchestrator: orchestrator,
		storage:      storage,
		videoRepo:    videoRepo,
		speakerRepo:  speakerRepo,
		completed:    completed,
		failed:       failed,
	}
}

func (f *pipelineFixture) start(t *testing.T) {
	t.Helper()
	payload := io.NopCloser(strings.NewReader("video bytes"))
	meta := models.VideoMetadata{Title: "Lecture 1", Filename: "lecture.mp4", SizeBytes: 11, Visibility: "public"}
	if err := f.orchestrator.Start(payload, meta); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func stepStatus(snapshot SessionSnapshot, key models.StepKey) models.StepStatus {
	for _, s := range snapshot.Steps {
		if s.Key == key {
			return s.Status
		}
	}
	return ""
}

func stepDetail(snapshot SessionSnapshot, key models.StepKey) string {
	for _, s := range snapshot.Steps {
		if s.Key == key {
			return s.Detail
		}
	}
	return ""
}

func TestPipelineSingleSpeakerFlow(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.start(t)

	var result models.PipelineResult
	select {
	case result = <-f.completed:
	case msg := <-f.failed:
		t.Fatalf("pipeline failed: %s", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not complete")
	}

	snapshot := f.orchestrator.Snapshot()
	if snapshot.State != models.SessionStateFinished {
		t.Fatalf("state = %s, want finished", snapshot.State)
	}
	if snapshot.Progress != 100 {
		t.Fatalf("progress = %d, want 100", snapshot.Progress)
	}
	for _, s := range snapshot.Steps {
		if s.Status != models.StepStatusCompleted {
			t.Fatalf("step %s status = %s, want completed", s.Key, s.Status)
		}
	}
	if detail := stepDetail(snapshot, models.StepSpeakerIdentification); detail != "No identification needed" {
		t.Fatalf("speaker step detail = %q", detail)
	}

	if result.AssetID != "asset-1" || result.PlaybackID != "play-1" {
		t.Fatalf("result = %+v", result)
	}
	if id, err := uuid.Parse(result.RecordID); err != nil || id == uuid.Nil {
		t.Fatalf("result record id = %q", result.RecordID)
	}
	if result.CaptionVTTURL == "" || result.ElapsedSeconds <= 0 {
		t.Fatalf("result missing captions or elapsed: %+v", result)
	}

	if len(f.videoRepo.videos) != 1 {
		t.Fatalf("persisted %d videos, want 1", len(f.videoRepo.videos))
	}
	if got := f.videoRepo.videos[0].Status; got != models.VideoStatusPublished {
		t.Fatalf("video status = %s, want published", got)
	}

	// The bypassed step never waited for confirmation.
	if err := f.orchestrator.ConfirmSpeakers(); err == nil {
		t.Fatal("ConfirmSpeakers should fail when identification was bypassed")
	}
}

func TestPipelineMultiSpeakerConfirm(t *testing.T) {
	f := newPipelineFixture(t, func(cfg *config.Config, storage *fakeStorage, client *scriptedStatusClient, captions *fakeCaptionStore, videos *fakeVideoRepo) {
		captions.doc = multiSpeakerVTT
	})
	f.start(t)

	waitFor(t, 2*time.Second, func() bool {
		return stepStatus(f.orchestrator.Snapshot(), models.StepSpeakerIdentification) == models.StepStatusProcessing
	})

	snapshot := f.orchestrator.Snapshot()
	if snapshot.Progress != 67 {
		t.Fatalf("progress while awaiting confirmation = %d, want 67", snapshot.Progress)
	}

	speakers := f.orchestrator.Speakers()
	if len(speakers) != 2 {
		t.Fatalf("derived %d speakers, want 2", len(speakers))
	}
	if err := f.orchestrator.RenameSpeaker("Speaker 2", "Guest Lecturer"); err != nil {
		t.Fatalf("RenameSpeaker: %v", err)
	}

	if err := f.orchestrator.ConfirmSpeakers(); err != nil {
		t.Fatalf("ConfirmSpeakers: %v", err)
	}

	select {
	case <-f.completed:
	case msg := <-f.failed:
		t.Fatalf("pipeline failed: %s", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not complete after confirmation")
	}

	if len(f.speakerRepo.records) != 2 {
		t.Fatalf("persisted %d speaker records, want 2", len(f.speakerRepo.records))
	}
	var renamed bool
	for _, rec := range f.speakerRepo.records {
		if rec.VideoID == uuid.Nil {
			t.Fatal("speaker record missing video reference")
		}
		if rec.OriginalLabel == "Speaker 2" && rec.Name == "Guest Lecturer" {
			renamed = true
		}
	}
	if !renamed {
		t.Fatal("rename was not carried into persisted records")
	}
}

func TestPipelineMultiSpeakerSkip(t *testing.T) {
	f := newPipelineFixture(t, func(cfg *config.Config, storage *fakeStorage, client *scriptedStatusClient, captions *fakeCaptionStore, videos *fakeVideoRepo) {
		captions.doc = multiSpeakerVTT
	})
	f.start(t)

	waitFor(t, 2*time.Second, func() bool {
		return stepStatus(f.orchestrator.Snapshot(), models.StepSpeakerIdentification) == models.StepStatusProcessing
	})

	if err := f.orchestrator.SkipSpeakerIdentification(); err != nil {
		t.Fatalf("SkipSpeakerIdentification: %v", err)
	}

	select {
	case <-f.completed:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not complete after skip")
	}

	if len(f.speakerRepo.records) != 0 {
		t.Fatalf("skip persisted %d speaker records, want 0", len(f.speakerRepo.records))
	}
	if detail := stepDetail(f.orchestrator.Snapshot(), models.StepSpeakerIdentification); detail != "Identification skipped" {
		t.Fatalf("speaker step detail = %q", detail)
	}
}

func TestPipelineUploadFailureHalts(t *testing.T) {
	f := newPipelineFixture(t, func(cfg *config.Config, storage *fakeStorage, client *scriptedStatusClient, captions *fakeCaptionStore, videos *fakeVideoRepo) {
		storage.failSingle = true
	})
	f.start(t)

	select {
	case <-f.failed:
	case <-f.completed:
		t.Fatal("pipeline completed despite upload failure")
	case <-time.After(2 * time.Second):
		t.Fatal("no error surfaced")
	}

	snapshot := f.orchestrator.Snapshot()
	if got := stepStatus(snapshot, models.StepUpload); got != models.StepStatusError {
		t.Fatalf("upload step = %s, want error", got)
	}
	for _, key := range []models.StepKey{models.StepProcessing, models.StepSubtitles, models.StepDatabase, models.StepSpeakerIdentification, models.StepCompletion} {
		if got := stepStatus(snapshot, key); got != models.StepStatusPending {
			t.Fatalf("step %s = %s, want pending after halt", key, got)
		}
	}
	if snapshot.State != models.SessionStateFinished {
		t.Fatalf("state = %s, want finished", snapshot.State)
	}
	if len(f.videoRepo.videos) != 0 {
		t.Fatal("no record should be persisted after upload failure")
	}
}

func TestPipelineRemoteErrorHalts(t *testing.T) {
	f := newPipelineFixture(t, func(cfg *config.Config, storage *fakeStorage, client *scriptedStatusClient, captions *fakeCaptionStore, videos *fakeVideoRepo) {
		client.statuses = []*models.RemoteAssetStatus{
			{AssetID: "asset-1", Status: models.AssetStatusErrored, ErrorMessage: "input file corrupt"},
		}
	})
	f.start(t)

	var msg string
	select {
	case msg = <-f.failed:
	case <-time.After(2 * time.Second):
		t.Fatal("no error surfaced")
	}
	if !strings.Contains(msg, "input file corrupt") {
		t.Fatalf("error message = %q, want carried transcoder message", msg)
	}

	snapshot := f.orchestrator.Snapshot()
	if got := stepStatus(snapshot, models.StepProcessing); got != models.StepStatusError {
		t.Fatalf("processing step = %s, want error", got)
	}
	if got := stepStatus(snapshot, models.StepUpload); got != models.StepStatusCompleted {
		t.Fatalf("upload step = %s, want completed preserved", got)
	}
}

// A missing or unreachable caption document degrades the subtitles step but
// never fails the pipeline.
func TestPipelineCaptionFetchFailureTolerated(t *testing.T) {
	f := newPipelineFixture(t, func(cfg *config.Config, storage *fakeStorage, client *scriptedStatusClient, captions *fakeCaptionStore, videos *fakeVideoRepo) {
		captions.err = fmt.Errorf("404 not found")
	})
	f.start(t)

	select {
	case <-f.completed:
	case msg := <-f.failed:
		t.Fatalf("pipeline failed: %s", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not complete")
	}

	snapshot := f.orchestrator.Snapshot()
	if got := stepStatus(snapshot, models.StepSubtitles); got != models.StepStatusCompleted {
		t.Fatalf("subtitles step = %s, want completed", got)
	}
	if got := f.videoRepo.videos[0].Status; got != models.VideoStatusProcessing {
		t.Fatalf("video status = %s, want processing without captions", got)
	}
}

func TestPipelinePersistenceFailureHalts(t *testing.T) {
	f := newPipelineFixture(t, func(cfg *config.Config, storage *fakeStorage, client *scriptedStatusClient, captions *fakeCaptionStore, videos *fakeVideoRepo) {
		videos.failCreate = true
	})
	f.start(t)

	select {
	case <-f.failed:
	case <-time.After(2 * time.Second):
		t.Fatal("no error surfaced")
	}

	snapshot := f.orchestrator.Snapshot()
	if got := stepStatus(snapshot, models.StepDatabase); got != models.StepStatusError {
		t.Fatalf("database step = %s, want error", got)
	}
	if got := stepStatus(snapshot, models.StepCompletion); got != models.StepStatusPending {
		t.Fatalf("completion step = %s, want pending", got)
	}
}

func TestCloseRefusedWhileRunning(t *testing.T) {
	f := newPipelineFixture(t, func(cfg *config.Config, storage *fakeStorage, client *scriptedStatusClient, captions *fakeCaptionStore, videos *fakeVideoRepo) {
		captions.doc = multiSpeakerVTT
	})
	f.start(t)

	waitFor(t, 2*time.Second, func() bool {
		return stepStatus(f.orchestrator.Snapshot(), models.StepSpeakerIdentification) == models.StepStatusProcessing
	})

	if err := f.orchestrator.Close(); err != ErrSessionRunning {
		t.Fatalf("Close while running = %v, want ErrSessionRunning", err)
	}

	if err := f.orchestrator.SkipSpeakerIdentification(); err != nil {
		t.Fatalf("SkipSpeakerIdentification: %v", err)
	}
	<-f.completed

	if err := f.orchestrator.Close(); err != nil {
		t.Fatalf("Close after finish = %v, want nil", err)
	}
}

func TestResetIdempotent(t *testing.T) {
	f := newPipelineFixture(t, nil)
	f.start(t)
	<-f.completed

	for i := 0; i < 2; i++ {
		if err := f.orchestrator.Reset(); err != nil {
			t.Fatalf("Reset #%d: %v", i+1, err)
		}
		snapshot := f.orchestrator.Snapshot()
		if snapshot.State != models.SessionStateIdle {
			t.Fatalf("state after reset = %s, want idle", snapshot.State)
		}
		if snapshot.Progress != 0 {
			t.Fatalf("progress after reset = %d, want 0", snapshot.Progress)
		}
		for _, s := range snapshot.Steps {
			if s.Status != models.StepStatusPending || s.Progress != 0 || s.Detail != "" {
				t.Fatalf("step %s not fully reset: %+v", s.Key, s)
			}
		}
	}
	if got := f.orchestrator.Speakers(); len(got) != 0 {
		t.Fatalf("speakers after reset = %d, want 0", len(got))
	}
}

func TestStartRefusedWhileRunning(t *testing.T) {
	f := newPipelineFixture(t, func(cfg *config.Config, storage *fakeStorage, client *scriptedStatusClient, captions *fakeCaptionStore, videos *fakeVideoRepo) {
		captions.doc = multiSpeakerVTT
	})
	f.start(t)

	waitFor(t, 2*time.Second, func() bool {
		return stepStatus(f.orchestrator.Snapshot(), models.StepSpeakerIdentification) == models.StepStatusProcessing
	})

	err := f.orchestrator.Start(io.NopCloser(strings.NewReader("x")), models.VideoMetadata{Title: "Another", Filename: "b.mp4", SizeBytes: 1})
	if err != ErrSessionRunning {
		t.Fatalf("second Start = %v, want ErrSessionRunning", err)
	}

	if err := f.orchestrator.SkipSpeakerIdentification(); err != nil {
		t.Fatalf("SkipSpeakerIdentification: %v", err)
	}
	<-f.completed
}

// A plain error without step attribution is pinned to the stage that
// returned it, never blamed on the upload step.
func TestFailAttributesActiveStage(t *testing.T) {
	f := newPipelineFixture(t, nil)

	f.orchestrator.fail(models.StepDatabase, fmt.Errorf("record insert rejected"))

	var msg string
	select {
	case msg = <-f.failed:
	case <-time.After(time.Second):
		t.Fatal("no error surfaced")
	}
	if !strings.Contains(msg, "record insert rejected") {
		t.Fatalf("error message = %q", msg)
	}

	snapshot := f.orchestrator.Snapshot()
	if got := stepStatus(snapshot, models.StepDatabase); got != models.StepStatusError {
		t.Fatalf("database step = %s, want error", got)
	}
	if got := stepStatus(snapshot, models.StepUpload); got != models.StepStatusPending {
		t.Fatalf("upload step = %s, want pending", got)
	}
}
