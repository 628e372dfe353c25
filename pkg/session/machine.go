package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-casedraft-be/internal/pkg/logger"
	"ai-casedraft-be/pkg/version"
)

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrEditInProgress    = errors.New("an edit is already in progress")
	ErrNoPendingQuestion = errors.New("no pending question")
	ErrEmptyResult       = errors.New("generated result is empty")
)

const (
	msgEmptyResult = "generated result is empty"
	msgInterrupted = "connection interrupted before the pipeline finished"
	msgCancelled   = "generation cancelled"
	msgStageFailed = "pipeline reported an error"
	msgTransport   = "could not connect to the pipeline"
)

// Effect describes what a transition did, for the orchestrator to publish.
type Effect struct {
	Changed       bool
	Ignored       bool
	Terminal      bool
	StreamStarted bool
	Chunk         string
	Version       *version.Version
	Question      *Question
}

// PollResult is the backend's view of a session, used to recover runs whose
// stream was lost.
type PollResult struct {
	Stage   Stage
	Status  Status
	Done    bool
	Content string
	Message string
}

// Snapshot is a consistent copy of the machine's observable state.
type Snapshot struct {
	Stage             Stage      `json:"stage"`
	Status            Status     `json:"status"`
	Progress          float64    `json:"progress"`
	Message           string     `json:"message,omitempty"`
	ErrorKind         ErrorKind  `json:"error_kind,omitempty"`
	Error             string     `json:"error,omitempty"`
	CorrelationID     string     `json:"correlation_id,omitempty"`
	Question          *Question  `json:"question,omitempty"`
	Streaming         bool       `json:"streaming"`
	StreamingText     string     `json:"streaming_text,omitempty"`
	Artifact          string     `json:"artifact,omitempty"`
	VersionCount      int        `json:"version_count"`
	RunActive         bool       `json:"run_active"`
	IsProcessingEdit  bool       `json:"is_processing_edit"`
	UpdatedAt         time.Time  `json:"updated_at"`
	FinalizedAt       *time.Time `json:"finalized_at,omitempty"`
	// StreamCompletedAt is set when the last finalized artifact came from streamed chunks.
	StreamCompletedAt *time.Time `json:"stream_completed_at,omitempty"`
}

// Machine is the lifecycle state of one session. All methods are safe for
// concurrent use; a single pipeline run feeds Apply at a time.
type Machine struct {
	mu     sync.Mutex
	logger logger.ILogger
	now    func() time.Time

	stage         Stage
	status        Status
	message       string
	errorKind     ErrorKind
	errMessage    string
	correlationID string
	completed     map[Stage]bool
	question      *Question

	runActive   bool
	runTerminal bool

	acc     *Accumulator
	history *version.History

	artifact         string
	isProcessingEdit bool
	updatedAt        time.Time
	finalizedAt      time.Time
	streamDoneAt     time.Time
}

func NewMachine(log logger.ILogger) *Machine {
	if log == nil {
		log = logger.NewNopLogger()
	}
	m := &Machine{
		logger:    log,
		now:       time.Now,
		stage:     StageIdle,
		status:    StatusAguardando,
		completed: make(map[Stage]bool),
		acc:       NewAccumulator(),
		history:   version.NewHistory(log),
	}
	m.updatedAt = m.now()
	return m
}

// BeginRun prepares for a new pipeline stream. The previous artifact, if any,
// stays in place until the new run succeeds.
func (m *Machine) BeginRun() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isProcessingEdit {
		return ErrEditInProgress
	}
	if m.runActive {
		return fmt.Errorf("%w: a pipeline run is already active", ErrInvalidTransition)
	}

	m.acc.Reset()
	m.stage = StageIdle
	m.status = StatusAguardando
	m.message = ""
	m.errorKind = ErrorKindNone
	m.errMessage = ""
	m.correlationID = ""
	m.completed = make(map[Stage]bool)
	m.question = nil
	m.runActive = true
	m.runTerminal = false
	m.touch()
	return nil
}

// Apply feeds one stream event through the state machine.
func (m *Machine) Apply(ev Event) Effect {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.runActive || m.runTerminal || m.question != nil {
		m.logger.Debug("SessionMachine", "Ignoring event outside an open run", map[string]interface{}{
			"kind": string(ev.Kind()),
		})
		return Effect{Ignored: true}
	}

	switch e := ev.(type) {
	case StartEvent:
		m.message = e.Message
		if e.CorrelationID != "" {
			m.correlationID = e.CorrelationID
		}
		m.touch()
		return Effect{Changed: true}

	case StageEvent:
		return m.applyStage(e)

	case ChunkEvent:
		if m.stage != StageGenerating {
			m.logger.Warn("SessionMachine", "Dropping chunk outside generating stage", map[string]interface{}{
				"stage": string(m.stage),
			})
			return Effect{Ignored: true}
		}
		first := m.acc.Append(e.Content)
		m.touch()
		return Effect{Changed: true, StreamStarted: first, Chunk: e.Content}

	case SuccessEvent:
		return m.applySuccess(e)

	case ErrorEvent:
		if e.CorrelationID != "" {
			m.correlationID = e.CorrelationID
		}
		msg := e.Message
		if strings.TrimSpace(msg) == "" {
			msg = msgStageFailed
		}
		return m.failLocked(ErrorKindStage, msg)

	case InfoEvent:
		m.message = e.Message
		m.touch()
		return Effect{Changed: true}

	case QuestionEvent:
		q := &Question{Prompt: e.Prompt, Options: append([]string(nil), e.Options...)}
		m.question = q
		m.status = StatusAguardando
		m.message = e.Prompt
		m.touch()
		return Effect{Changed: true, Question: &Question{Prompt: q.Prompt, Options: append([]string(nil), q.Options...)}}
	}

	return Effect{Ignored: true}
}

func (m *Machine) applyStage(e StageEvent) Effect {
	target := e.Stage.PipelineIndex()
	if target < 0 {
		m.logger.Warn("SessionMachine", "Ignoring stage event for non-pipeline stage", map[string]interface{}{
			"stage": string(e.Stage),
		})
		return Effect{Ignored: true}
	}
	if current := m.stage.PipelineIndex(); current > target {
		m.logger.Warn("SessionMachine", "Ignoring backward stage move", map[string]interface{}{
			"from": string(m.stage),
			"to":   string(e.Stage),
		})
		return Effect{Ignored: true}
	}

	m.stage = e.Stage
	if e.Message != "" {
		m.message = e.Message
	}

	switch e.Status {
	case StatusErro:
		msg := e.Message
		if strings.TrimSpace(msg) == "" {
			msg = fmt.Sprintf("stage %s failed", e.Stage)
		}
		return m.failLocked(ErrorKindStage, msg)
	case StatusConcluido:
		m.completed[e.Stage] = true
	}
	m.status = e.Status
	m.touch()
	return Effect{Changed: true}
}

func (m *Machine) applySuccess(e SuccessEvent) Effect {
	if e.CorrelationID != "" {
		m.correlationID = e.CorrelationID
	}

	// Streamed text wins over finalResult when both are present.
	streamed := m.acc.Current()
	content := streamed
	if strings.TrimSpace(streamed) == "" {
		content = e.FinalResult
	} else if e.FinalResult != "" && e.FinalResult != streamed {
		m.logger.Warn("SessionMachine", "Streamed text differs from finalResult, keeping streamed text", map[string]interface{}{
			"streamed_len":     len(streamed),
			"final_result_len": len(e.FinalResult),
			"correlation_id":   m.correlationID,
		})
	}

	if strings.TrimSpace(content) == "" {
		return m.failLocked(ErrorKindEmptyResult, msgEmptyResult)
	}

	m.streamDoneAt = time.Time{}
	if content == streamed {
		m.acc.Complete()
		m.streamDoneAt = m.acc.CompletedAt()
	}
	v := m.finalizeLocked(content, version.OriginInitial, "")
	m.acc.Reset()
	m.runTerminal = true
	return Effect{Changed: true, Terminal: true, Version: &v}
}

func (m *Machine) finalizeLocked(content string, origin version.Origin, description string) version.Version {
	m.artifact = content
	v := m.history.RecordVersion(content, origin, description)
	m.stage = StageFinalized
	m.status = StatusConcluido
	m.errorKind = ErrorKindNone
	m.errMessage = ""
	for _, s := range PipelineStages {
		m.completed[s] = true
	}
	m.finalizedAt = m.now()
	m.touch()
	return v
}

func (m *Machine) failLocked(kind ErrorKind, msg string) Effect {
	m.acc.Reset()
	m.status = StatusErro
	m.errorKind = kind
	m.errMessage = msg
	m.question = nil
	m.runTerminal = true
	m.touch()

	m.logger.Warn("SessionMachine", "Run failed", map[string]interface{}{
		"kind":           string(kind),
		"message":        msg,
		"stage":          string(m.stage),
		"correlation_id": m.correlationID,
	})
	return Effect{Changed: true, Terminal: true}
}

// EndRun is called when the stream closes. A run that produced no terminal
// event and is not waiting on a question fails as interrupted.
func (m *Machine) EndRun() Effect {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.runActive {
		return Effect{Ignored: true}
	}
	m.runActive = false
	if m.runTerminal || m.question != nil {
		return Effect{}
	}
	return m.failLocked(ErrorKindInterrupted, msgInterrupted)
}

// ReleaseRun closes the run bookkeeping without changing state. Used when the
// run's reader is stopped because a newer run or a cancel replaced it.
func (m *Machine) ReleaseRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runActive = false
}

// FailTransport records that the stream could not be opened or broke mid-read.
func (m *Machine) FailTransport(err error) Effect {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.runActive {
		return Effect{Ignored: true}
	}
	m.runActive = false
	if m.runTerminal {
		return Effect{}
	}
	msg := msgTransport
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msgTransport, err)
	}
	return m.failLocked(ErrorKindTransport, msg)
}

// Abort cancels the current run or pending question. With an artifact the
// session returns to finalized, otherwise it ends in erro.
func (m *Machine) Abort() Effect {
	m.mu.Lock()
	defer m.mu.Unlock()

	open := m.runActive && !m.runTerminal
	if !open && m.question == nil {
		return Effect{Ignored: true}
	}

	m.runActive = false
	m.question = nil
	m.acc.Reset()

	if m.artifact != "" {
		m.runTerminal = true
		m.stage = StageFinalized
		m.status = StatusConcluido
		m.errorKind = ErrorKindNone
		m.errMessage = ""
		m.message = msgCancelled
		m.touch()
		return Effect{Changed: true, Terminal: true}
	}
	return m.failLocked(ErrorKindCancelled, msgCancelled)
}

// PendingQuestion returns the question the pipeline is waiting on.
func (m *Machine) PendingQuestion() (Question, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.question == nil {
		return Question{}, false
	}
	return Question{Prompt: m.question.Prompt, Options: append([]string(nil), m.question.Options...)}, true
}

func (m *Machine) canEditLocked() bool {
	runOpen := m.runActive && !m.runTerminal
	return m.stage == StageFinalized && m.status == StatusConcluido && m.artifact != "" && !runOpen
}

// BeginEdit moves a finalized session into editing and returns the artifact
// the edit applies to.
func (m *Machine) BeginEdit() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isProcessingEdit {
		return "", ErrEditInProgress
	}
	if !m.canEditLocked() {
		return "", fmt.Errorf("%w: edit requires a finalized artifact (stage=%s status=%s)", ErrInvalidTransition, m.stage, m.status)
	}
	m.isProcessingEdit = true
	m.stage = StageEditing
	m.status = StatusAtivo
	m.touch()
	return m.artifact, nil
}

// CompleteEdit replaces the artifact with content and records a chat-edit
// version described by the user's message.
func (m *Machine) CompleteEdit(content, description string) (version.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isProcessingEdit {
		return version.Version{}, fmt.Errorf("%w: no edit in progress", ErrInvalidTransition)
	}
	m.isProcessingEdit = false
	if strings.TrimSpace(content) == "" {
		m.stage = StageFinalized
		m.status = StatusConcluido
		m.touch()
		return version.Version{}, ErrEmptyResult
	}
	return m.finalizeLocked(content, version.OriginChatEdit, description), nil
}

// FailEdit leaves editing with the previous artifact untouched.
func (m *Machine) FailEdit(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isProcessingEdit {
		return fmt.Errorf("%w: no edit in progress", ErrInvalidTransition)
	}
	m.isProcessingEdit = false
	m.stage = StageFinalized
	m.status = StatusConcluido
	m.touch()

	m.logger.Info("SessionMachine", "Edit failed, artifact kept", map[string]interface{}{
		"reason": reason,
	})
	return nil
}

// Restore makes version n the current artifact by appending a manual-restore
// version.
func (m *Machine) Restore(sequenceNumber int) (version.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isProcessingEdit {
		return version.Version{}, ErrEditInProgress
	}
	if !m.canEditLocked() {
		return version.Version{}, fmt.Errorf("%w: restore requires a finalized artifact", ErrInvalidTransition)
	}
	v, err := m.history.Restore(sequenceNumber)
	if err != nil {
		return version.Version{}, err
	}
	m.artifact = v.Content
	m.touch()
	return v, nil
}

// ApplyPolled recovers a run that ended without a terminal event, using the
// backend's polled status. Repeated polls after recovery change nothing.
func (m *Machine) ApplyPolled(p PollResult) Effect {
	m.mu.Lock()
	defer m.mu.Unlock()

	recoverable := m.status == StatusErro &&
		(m.errorKind == ErrorKindInterrupted || m.errorKind == ErrorKindTransport)
	if m.runActive || !recoverable {
		return Effect{Ignored: true}
	}

	switch {
	case p.Done && strings.TrimSpace(p.Content) != "":
		v := m.finalizeLocked(NormalizeMarkdown(p.Content), version.OriginInitial, "")
		m.message = p.Message
		return Effect{Changed: true, Terminal: true, Version: &v}
	case p.Status == StatusErro:
		m.errorKind = ErrorKindStage
		if p.Message != "" {
			m.errMessage = p.Message
		}
		m.touch()
		return Effect{Changed: true, Terminal: true}
	}
	return Effect{}
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Stage:            m.stage,
		Status:           m.status,
		Progress:         float64(m.completedCountLocked()) / float64(len(PipelineStages)),
		Message:          m.message,
		ErrorKind:        m.errorKind,
		Error:            m.errMessage,
		CorrelationID:    m.correlationID,
		Streaming:        m.acc.IsActive(),
		StreamingText:    m.acc.Current(),
		Artifact:         m.artifact,
		VersionCount:     m.history.Len(),
		RunActive:        m.runActive && !m.runTerminal,
		IsProcessingEdit: m.isProcessingEdit,
		UpdatedAt:        m.updatedAt,
	}
	if m.question != nil {
		s.Question = &Question{Prompt: m.question.Prompt, Options: append([]string(nil), m.question.Options...)}
	}
	if !m.finalizedAt.IsZero() {
		at := m.finalizedAt
		s.FinalizedAt = &at
	}
	if !m.streamDoneAt.IsZero() {
		at := m.streamDoneAt
		s.StreamCompletedAt = &at
	}
	return s
}

func (m *Machine) completedCountLocked() int {
	n := 0
	for _, s := range PipelineStages {
		if m.completed[s] {
			n++
		}
	}
	return n
}

func (m *Machine) Artifact() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.artifact
}

func (m *Machine) History() *version.History {
	return m.history
}

func (m *Machine) IsProcessingEdit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isProcessingEdit
}

func (m *Machine) touch() {
	m.updatedAt = m.now()
}
