package session

// EventKind names a StreamEvent variant.
type EventKind string

const (
	KindStart    EventKind = "start"
	KindStage    EventKind = "stage"
	KindChunk    EventKind = "chunk"
	KindSuccess  EventKind = "success"
	KindError    EventKind = "error"
	KindInfo     EventKind = "info"
	KindQuestion EventKind = "question"
)

// Event is one decoded pipeline stream event. The set of implementations is
// closed: StartEvent, StageEvent, ChunkEvent, SuccessEvent, ErrorEvent,
// InfoEvent and QuestionEvent.
type Event interface {
	Kind() EventKind
	isEvent()
}

type StartEvent struct {
	Message       string
	CorrelationID string
}

type StageEvent struct {
	Stage   Stage
	Status  Status
	Message string
}

type ChunkEvent struct {
	Content string
}

type SuccessEvent struct {
	// FinalResult is the inline artifact, already unwrapped. Empty when the
	// backend sent null or omitted it.
	FinalResult   string
	Metadata      map[string]interface{}
	CorrelationID string
}

type ErrorEvent struct {
	Message       string
	CorrelationID string
}

type InfoEvent struct {
	Message string
}

type QuestionEvent struct {
	Prompt  string
	Options []string
}

func (StartEvent) Kind() EventKind    { return KindStart }
func (StageEvent) Kind() EventKind    { return KindStage }
func (ChunkEvent) Kind() EventKind    { return KindChunk }
func (SuccessEvent) Kind() EventKind  { return KindSuccess }
func (ErrorEvent) Kind() EventKind    { return KindError }
func (InfoEvent) Kind() EventKind     { return KindInfo }
func (QuestionEvent) Kind() EventKind { return KindQuestion }

func (StartEvent) isEvent()    {}
func (StageEvent) isEvent()    {}
func (ChunkEvent) isEvent()    {}
func (SuccessEvent) isEvent()  {}
func (ErrorEvent) isEvent()    {}
func (InfoEvent) isEvent()     {}
func (QuestionEvent) isEvent() {}

// Question is a pending disambiguation request from the pipeline.
type Question struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}
