package service

import (
	"fmt"
	"sync"

	"github.com/ajgcsol/videopipeline/config"
	"github.com/ajgcsol/videopipeline/repository"
	"github.com/sirupsen/logrus"
)

// SessionManager creates one orchestrator per concurrent upload session and
// tracks them by ID. There is no process-wide pipeline singleton.
type SessionManager struct {
	cfg         *config.Config
	storage     StorageService
	statusAPI   AssetStatusClient
	captions    CaptionStore
	videos      repository.VideoRepository
	speakerRepo repository.SpeakerRepository
	logger      *logrus.Logger

	mu       sync.Mutex
	sessions map[string]*Orchestrator
}

func NewSessionManager(
	cfg *config.Config,
	storage StorageService,
	statusAPI AssetStatusClient,
	captions CaptionStore,
	videos repository.VideoRepository,
	speakerRepo repository.SpeakerRepository,
	logger *logrus.Logger,
) *SessionManager {
	return &SessionManager{
		cfg:         cfg,
		storage:     storage,
		statusAPI:   statusAPI,
		captions:    captions,
		videos:      videos,
		speakerRepo: speakerRepo,
		logger:      logger,
		sessions:    make(map[string]*Orchestrator),
	}
}

// CreateSession builds a fresh orchestrator with its own poller and
// registry. Completion callbacks default to log statements; the caller
// observes progress through session snapshots.
func (m *SessionManager) CreateSession(onComplete CompletionFunc, onError ErrorFunc) *Orchestrator {
	transport := NewUploadTransport(m.storage, m.cfg, m.logger)
	poller := NewPoller(m.statusAPI, m.cfg, m.logger)
	orchestrator := NewOrchestrator(m.cfg, transport, poller, m.captions, m.videos, m.speakerRepo, m.logger, onComplete, onError)

	m.mu.Lock()
	m.sessions[orchestrator.ID().String()] = orchestrator
	m.mu.Unlock()

	return orchestrator
}

// Get returns the orchestrator for a session ID.
func (m *SessionManager) Get(id string) (*Orchestrator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orchestrator, ok := m.sessions[id]
	return orchestrator, ok
}

// Close removes a session. Closing is refused while the session runs.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	orchestrator, ok := m.sessions[id]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown session: %s", id)
	}
	if err := orchestrator.Close(); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}
