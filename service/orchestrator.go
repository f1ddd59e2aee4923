package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/ajgcsol/videopipeline/config"
	"github.com/ajgcsol/videopipeline/models"
	"github.com/ajgcsol/videopipeline/pkg/metrics"
	"github.com/ajgcsol/videopipeline/repository"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// CompletionFunc receives the aggregate result once every step completes.
type CompletionFunc func(result models.PipelineResult)

// ErrorFunc receives the first fatal error message; the pipeline halts after.
type ErrorFunc func(message string)

// SessionSnapshot is the caller-facing view of one session.
type SessionSnapshot struct {
	SessionID      string                `json:"session_id"`
	State          models.SessionState   `json:"state"`
	Steps          []models.PipelineStep `json:"steps"`
	Progress       int                   `json:"progress"`
	ElapsedSeconds float64               `json:"elapsed_seconds"`
}

// Orchestrator owns the ordered step list and all session-derived data for
// one upload session. The transport, poller, and parser are stateless
// collaborators that report back only through return values and callbacks.
type Orchestrator struct {
	id          uuid.UUID
	cfg         *config.Config
	transport   UploadTransport
	poller      *Poller
	captions    CaptionStore
	videos      repository.VideoRepository
	speakerRepo repository.SpeakerRepository
	registry    *SpeakerRegistry
	logger      *logrus.Logger

	onComplete CompletionFunc
	onError    ErrorFunc

	mu         sync.Mutex
	state      models.SessionState
	steps      []*models.PipelineStep
	startedAt  time.Time
	upload     *models.UploadResult
	asset      *models.RemoteAssetStatus
	transcript *models.TranscriptData
	recordID   uuid.UUID
	confirmCh  chan bool
}

func NewOrchestrator(
	cfg *config.Config,
	transport UploadTransport,
	poller *Poller,
	captions CaptionStore,
	videos repository.VideoRepository,
	speakerRepo repository.SpeakerRepository,
	logger *logrus.Logger,
	onComplete CompletionFunc,
	onError ErrorFunc,
) *Orchestrator {
	return &Orchestrator{
		id:          uuid.New(),
		cfg:         cfg,
		transport:   transport,
		poller:      poller,
		captions:    captions,
		videos:      videos,
		speakerRepo: speakerRepo,
		registry:    NewSpeakerRegistry(),
		logger:      logger,
		onComplete:  onComplete,
		onError:     onError,
		state:       models.SessionStateIdle,
		steps:       newSteps(),
	}
}

func newSteps() []*models.PipelineStep {
	return []*models.PipelineStep{
		{Key: models.StepUpload, Title: "Upload", Description: "Transfer the file to storage", Status: models.StepStatusPending},
		{Key: models.StepProcessing, Title: "Processing", Description: "Remote transcoding and thumbnail generation", Status: models.StepStatusPending},
		{Key: models.StepSubtitles, Title: "Subtitles", Description: "Fetch and parse caption data", Status: models.StepStatusPending},
		{Key: models.StepDatabase, Title: "Database", Description: "Persist the video record", Status: models.StepStatusPending},
		{Key: models.StepSpeakerIdentification, Title: "Speaker Identification", Description: "Label detected speakers", Status: models.StepStatusPending},
		{Key: models.StepCompletion, Title: "Completion", Description: "Finalize the session", Status: models.StepStatusPending},
	}
}

func (o *Orchestrator) ID() uuid.UUID {
	return o.id
}

// Start begins the pipeline for one file. A session already running rejects
// a second start. The caller hands over ownership of payload; the pipeline
// runs on its own session-scoped context so it outlives the request that
// triggered it.
func (o *Orchestrator) Start(payload io.ReadCloser, meta models.VideoMetadata) error {
	o.mu.Lock()
	if o.state == models.SessionStateRunning {
		o.mu.Unlock()
		return ErrSessionRunning
	}
	o.state = models.SessionStateRunning
	o.startedAt = time.Now()
	o.confirmCh = make(chan bool, 1)
	o.mu.Unlock()

	metrics.ActiveSessions.Inc()
	go o.run(payload, meta)
	return nil
}

func (o *Orchestrator) run(payload io.ReadCloser, meta models.VideoMetadata) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer payload.Close()
	defer metrics.ActiveSessions.Dec()

	if err := o.uploadStage(ctx, payload, meta); err != nil {
		o.fail(models.StepUpload, err)
		return
	}
	if err := o.processingStage(ctx); err != nil {
		o.fail(models.StepProcessing, err)
		return
	}
	o.subtitlesStage(ctx)
	speakerCount, err := o.databaseStage(meta)
	if err != nil {
		o.fail(models.StepDatabase, err)
		return
	}
	if err := o.speakerStage(ctx, speakerCount); err != nil {
		o.fail(models.StepSpeakerIdentification, err)
		return
	}
	o.completionStage()
}

// uploadStage drives the chunked or single-shot upload.
func (o *Orchestrator) uploadStage(ctx context.Context, payload io.Reader, meta models.VideoMetadata) error {
	if err := o.beginStep(models.StepUpload, "Uploading "+meta.Filename); err != nil {
		return err
	}

	result, err := o.transport.BeginUpload(ctx, payload, meta, func(percentage int) {
		o.setStepProgress(models.StepUpload, percentage)
	})
	if err != nil {
		return asPipelineError(models.StepUpload, err)
	}

	o.mu.Lock()
	o.upload = result
	o.mu.Unlock()

	return o.completeStep(models.StepUpload, "Upload finalized")
}

// processingStage waits for the remote transcoder to reach a terminal state.
func (o *Orchestrator) processingStage(ctx context.Context) error {
	if err := o.beginStep(models.StepProcessing, "Waiting for remote transcoding"); err != nil {
		return err
	}

	o.mu.Lock()
	jobID := o.upload.UploadID
	o.mu.Unlock()

	type outcome struct {
		status *models.RemoteAssetStatus
		err    error
	}
	ch := make(chan outcome, 1)
	if err := o.poller.Start(ctx, jobID, func(status *models.RemoteAssetStatus, err error) {
		ch <- outcome{status: status, err: err}
	}); err != nil {
		return NewRemoteProcessingError("failed to start status polling", err)
	}

	out := <-ch
	if out.err != nil {
		if errors.Is(out.err, ErrPollTimeout) {
			return NewRemoteProcessingError("transcoding did not finish before the timeout ceiling", out.err)
		}
		return asPipelineError(models.StepProcessing, out.err)
	}

	o.mu.Lock()
	o.asset = out.status
	o.mu.Unlock()

	detail := "Transcoding complete"
	if !out.status.Thumbnails.IsEmpty() {
		detail = "Thumbnails available"
	}
	return o.completeStep(models.StepProcessing, detail)
}

// subtitlesStage fetches and parses captions. Absence or fetch failure is
// tolerated: the step always completes.
func (o *Orchestrator) subtitlesStage(ctx context.Context) {
	if err := o.beginStep(models.StepSubtitles, "Fetching captions"); err != nil {
		o.logger.Errorf("Session %s: %v", o.id, err)
		return
	}

	o.mu.Lock()
	captionURL := o.asset.Captions.VTTURL
	o.mu.Unlock()

	if captionURL == "" {
		_ = o.completeStep(models.StepSubtitles, "No captions produced")
		return
	}

	doc, err := o.captions.FetchCaptionDocument(ctx, captionURL)
	if err != nil {
		o.logger.Warnf("Session %s: caption fetch failed: %v", o.id, err)
		_ = o.completeStep(models.StepSubtitles, "Captions unavailable")
		return
	}

	cueLines := CaptionCueLines(doc)
	plain := ParseCaptionDocument(doc)
	transcript := &models.TranscriptData{
		PlainText:    plain,
		SpeakerCount: EstimateSpeakerCount(plain),
		SourceURL:    captionURL,
	}
	o.registry.DeriveSpeakers(strings.Join(cueLines, "\n"))

	o.mu.Lock()
	o.transcript = transcript
	o.mu.Unlock()

	_ = o.completeStep(models.StepSubtitles, fmt.Sprintf("Transcript parsed, %d speaker(s) estimated", transcript.SpeakerCount))
}

// databaseStage persists the video record and returns the estimated speaker
// count for the branch decision.
func (o *Orchestrator) databaseStage(meta models.VideoMetadata) (int, error) {
	if err := o.beginStep(models.StepDatabase, "Creating video record"); err != nil {
		return 0, err
	}

	o.mu.Lock()
	upload := o.upload
	asset := o.asset
	transcript := o.transcript
	o.mu.Unlock()

	status := models.VideoStatusProcessing
	if transcript != nil {
		status = models.VideoStatusPublished
	}

	thumbs, err := json.Marshal(asset.Thumbnails)
	if err != nil {
		return 0, NewPersistenceError("failed to encode thumbnails", err)
	}

	video := &models.Video{
		Title:            meta.Title,
		Description:      meta.Description,
		Category:         meta.Category,
		Tags:             pq.StringArray(meta.Tags),
		Visibility:       meta.Visibility,
		OriginalFilename: meta.Filename,
		SizeBytes:        meta.SizeBytes,
		Status:           status,
		UploadID:         upload.UploadID,
		AssetID:          asset.AssetID,
		PlaybackID:       asset.PlaybackID,
		MinioBucket:      o.cfg.MinIO.BucketName,
		MinioObjectName:  upload.ObjectKey,
		Thumbnails:       datatypes.JSON(thumbs),
		CaptionVTTURL:    asset.Captions.VTTURL,
		CaptionSRTURL:    asset.Captions.SRTURL,
	}
	if err := o.videos.Create(video); err != nil {
		return 0, NewPersistenceError("failed to create video record", err)
	}

	o.mu.Lock()
	o.recordID = video.ID
	o.mu.Unlock()

	if err := o.completeStep(models.StepDatabase, "Record created with status "+status); err != nil {
		return 0, err
	}

	speakerCount := 1
	if transcript != nil {
		speakerCount = transcript.SpeakerCount
	}
	return speakerCount, nil
}

// speakerStage branches: multiple estimated speakers wait for an explicit
// confirm-or-skip signal, a single speaker bypasses the step entirely.
func (o *Orchestrator) speakerStage(ctx context.Context, speakerCount int) error {
	if speakerCount <= 1 {
		return o.skipStep(models.StepSpeakerIdentification, "No identification needed")
	}

	if err := o.beginStep(models.StepSpeakerIdentification, "Awaiting speaker confirmation"); err != nil {
		return err
	}

	select {
	case confirmed := <-o.confirmCh:
		if !confirmed {
			return o.completeStep(models.StepSpeakerIdentification, "Identification skipped")
		}
		o.persistSpeakers()
		return o.completeStep(models.StepSpeakerIdentification, fmt.Sprintf("%d speaker(s) confirmed", len(o.registry.Speakers())))
	case <-ctx.Done():
		return &PipelineError{Step: models.StepSpeakerIdentification, Message: "session aborted while awaiting confirmation", Err: ctx.Err()}
	}
}

// persistSpeakers stores the confirmed list. A storage failure here does not
// fail identification itself.
func (o *Orchestrator) persistSpeakers() {
	o.mu.Lock()
	recordID := o.recordID
	o.mu.Unlock()

	speakers := o.registry.Speakers()
	records := make([]*models.SpeakerRecord, 0, len(speakers))
	for _, s := range speakers {
		records = append(records, &models.SpeakerRecord{
			VideoID:       recordID,
			OriginalLabel: s.OriginalLabel,
			Name:          s.Name,
			SegmentCount:  s.SegmentCount,
			Confidence:    s.Confidence,
			Screenshot:    s.Screenshot,
		})
	}
	if err := o.speakerRepo.CreateBatch(records); err != nil {
		o.logger.Warnf("Session %s: failed to persist speakers: %v", o.id, err)
	}
}

// completionStage introduces a short delay for perceptible finality, then
// reports the aggregate result.
func (o *Orchestrator) completionStage() {
	if err := o.beginStep(models.StepCompletion, "Finalizing"); err != nil {
		o.logger.Errorf("Session %s: %v", o.id, err)
		return
	}

	time.Sleep(o.cfg.Pipeline.CompletionDelay)

	o.mu.Lock()
	elapsed := time.Since(o.startedAt)
	result := models.PipelineResult{
		RecordID:       o.recordID.String(),
		AssetID:        o.asset.AssetID,
		PlaybackID:     o.asset.PlaybackID,
		UploadID:       o.upload.UploadID,
		Thumbnails:     o.asset.Thumbnails,
		CaptionVTTURL:  o.asset.Captions.VTTURL,
		CaptionSRTURL:  o.asset.Captions.SRTURL,
		ElapsedSeconds: elapsed.Seconds(),
	}
	o.mu.Unlock()

	if err := o.completeStep(models.StepCompletion, fmt.Sprintf("Finished in %s", elapsed.Round(time.Second))); err != nil {
		o.logger.Errorf("Session %s: %v", o.id, err)
		return
	}

	o.mu.Lock()
	o.state = models.SessionStateFinished
	onComplete := o.onComplete
	o.mu.Unlock()

	metrics.PipelineDuration.Observe(elapsed.Seconds())
	o.logger.Infof("Session %s: pipeline finished in %s", o.id, elapsed.Round(time.Millisecond))
	if onComplete != nil {
		onComplete(result)
	}
}

// ConfirmSpeakers signals that the human labeling pass is done.
func (o *Orchestrator) ConfirmSpeakers() error {
	return o.signalIdentification(true)
}

// SkipSpeakerIdentification signals that labeling was declined.
func (o *Orchestrator) SkipSpeakerIdentification() error {
	return o.signalIdentification(false)
}

func (o *Orchestrator) signalIdentification(confirmed bool) error {
	o.mu.Lock()
	status := o.findStep(models.StepSpeakerIdentification).Status
	ch := o.confirmCh
	o.mu.Unlock()

	if status != models.StepStatusProcessing || ch == nil {
		return fmt.Errorf("speaker identification is not awaiting confirmation")
	}
	select {
	case ch <- confirmed:
		return nil
	default:
		return fmt.Errorf("speaker identification already signaled")
	}
}

// RenameSpeaker updates a speaker's display name.
func (o *Orchestrator) RenameSpeaker(originalLabel, name string) error {
	return o.registry.Rename(originalLabel, name)
}

// AttachSpeakerScreenshot stores a captured still frame on one speaker.
func (o *Orchestrator) AttachSpeakerScreenshot(originalLabel string, image []byte) error {
	return o.registry.AttachScreenshot(originalLabel, image)
}

// Speakers returns the currently derived speaker list.
func (o *Orchestrator) Speakers() []models.Speaker {
	return o.registry.Speakers()
}

// Snapshot returns the caller-facing session view.
func (o *Orchestrator) Snapshot() SessionSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	steps := make([]models.PipelineStep, 0, len(o.steps))
	completed := 0
	for _, s := range o.steps {
		steps = append(steps, *s)
		if s.Status == models.StepStatusCompleted {
			completed++
		}
	}

	var elapsed float64
	if !o.startedAt.IsZero() {
		elapsed = time.Since(o.startedAt).Seconds()
	}

	return SessionSnapshot{
		SessionID:      o.id.String(),
		State:          o.state,
		Steps:          steps,
		Progress:       int(math.Round(float64(completed) / float64(len(o.steps)) * 100)),
		ElapsedSeconds: elapsed,
	}
}

// Progress is the aggregate percentage: completed steps over total steps.
// Partial progress of the step currently processing does not count.
func (o *Orchestrator) Progress() int {
	return o.Snapshot().Progress
}

// State returns the global session state.
func (o *Orchestrator) State() models.SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Reset returns every step to pending and clears all derived session data.
// Resetting is refused while the pipeline is running, and is idempotent.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == models.SessionStateRunning {
		return ErrSessionRunning
	}

	o.steps = newSteps()
	o.state = models.SessionStateIdle
	o.startedAt = time.Time{}
	o.upload = nil
	o.asset = nil
	o.transcript = nil
	o.recordID = uuid.Nil
	o.confirmCh = nil
	o.registry.Reset()
	return nil
}

// Close refuses to tear the session down while it is running.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == models.SessionStateRunning {
		return ErrSessionRunning
	}
	return nil
}

// beginStep moves a step to processing. Every logically prior step must
// already be completed; anything else is an ordering violation.
func (o *Orchestrator) beginStep(key models.StepKey, detail string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, s := range o.steps {
		if s.Key == key {
			if s.Status != models.StepStatusPending {
				return fmt.Errorf("step %s cannot start from %s", key, s.Status)
			}
			s.Status = models.StepStatusProcessing
			s.Detail = detail
			s.StartedAt = time.Now()
			metrics.RecordStepTransition(string(key), string(models.StepStatusProcessing))
			return nil
		}
		if s.Status != models.StepStatusCompleted {
			return fmt.Errorf("step %s cannot start before %s completes", key, s.Key)
		}
	}
	return fmt.Errorf("unknown step: %s", key)
}

func (o *Orchestrator) completeStep(key models.StepKey, detail string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	step := o.findStep(key)
	if step == nil {
		return fmt.Errorf("unknown step: %s", key)
	}
	if step.Status != models.StepStatusProcessing {
		return fmt.Errorf("step %s cannot complete from %s", key, step.Status)
	}
	step.Status = models.StepStatusCompleted
	step.Progress = 100
	step.Detail = detail
	metrics.RecordStepTransition(string(key), string(models.StepStatusCompleted))
	return nil
}

// skipStep completes a bypassed step directly from pending; it never shows
// as processing.
func (o *Orchestrator) skipStep(key models.StepKey, detail string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	step := o.findStep(key)
	if step == nil {
		return fmt.Errorf("unknown step: %s", key)
	}
	if step.Status != models.StepStatusPending {
		return fmt.Errorf("step %s cannot be skipped from %s", key, step.Status)
	}
	step.Status = models.StepStatusCompleted
	step.Progress = 100
	step.Detail = detail
	metrics.RecordStepTransition(string(key), string(models.StepStatusCompleted))
	return nil
}

func (o *Orchestrator) setStepProgress(key models.StepKey, percentage int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	step := o.findStep(key)
	if step == nil || step.Status != models.StepStatusProcessing {
		return
	}
	if percentage > step.Progress {
		step.Progress = percentage
	}
}

// fail marks the offending step, halts the pipeline, and surfaces the
// message through the error callback. Completed steps stay completed.
// Errors without step attribution are pinned to the stage that returned
// them.
func (o *Orchestrator) fail(stage models.StepKey, err error) {
	pipelineErr := asPipelineError(stage, err)

	o.mu.Lock()
	step := o.findStep(pipelineErr.Step)
	if step != nil {
		step.Status = models.StepStatusError
		step.Detail = pipelineErr.Error()
		metrics.RecordStepTransition(string(pipelineErr.Step), string(models.StepStatusError))
	}
	o.state = models.SessionStateFinished
	onError := o.onError
	o.mu.Unlock()

	o.logger.Errorf("Session %s: pipeline halted: %v", o.id, pipelineErr)
	if onError != nil {
		onError(pipelineErr.Error())
	}
}

func (o *Orchestrator) findStep(key models.StepKey) *models.PipelineStep {
	for _, s := range o.steps {
		if s.Key == key {
			return s
		}
	}
	return nil
}

// asPipelineError keeps step attribution when it exists and pins the given
// step otherwise.
func asPipelineError(step models.StepKey, err error) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return &PipelineError{Step: step, Message: err.Error(), Err: err}
}
