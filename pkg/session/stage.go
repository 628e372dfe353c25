package session

import (
	"fmt"
	"strings"
)

type Stage string

const (
	StageIdle          Stage = "idle"
	StageCollecting    Stage = "collecting"
	StageFiltering     Stage = "filtering"
	StageExtracting    Stage = "extracting"
	StageConsolidating Stage = "consolidating"
	StageGenerating    Stage = "generating"
	StageEditing       Stage = "editing"
	StageFinalized     Stage = "finalized"
)

// PipelineStages lists the stream-driven stages in execution order.
var PipelineStages = []Stage{
	StageCollecting,
	StageFiltering,
	StageExtracting,
	StageConsolidating,
	StageGenerating,
}

var stageAliases = map[string]Stage{
	"idle":          StageIdle,
	"collecting":    StageCollecting,
	"coleta":        StageCollecting,
	"filtering":     StageFiltering,
	"filtragem":     StageFiltering,
	"extracting":    StageExtracting,
	"extracao":      StageExtracting,
	"extração":      StageExtracting,
	"consolidating": StageConsolidating,
	"consolidacao":  StageConsolidating,
	"consolidação":  StageConsolidating,
	"generating":    StageGenerating,
	"geracao":       StageGenerating,
	"geração":       StageGenerating,
	"editing":       StageEditing,
	"finalized":     StageFinalized,
	"finalizado":    StageFinalized,
}

func ParseStage(raw string) (Stage, error) {
	if s, ok := stageAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown stage %q", raw)
}

// PipelineIndex is the position of s in PipelineStages, or -1.
func (s Stage) PipelineIndex() int {
	for i, p := range PipelineStages {
		if p == s {
			return i
		}
	}
	return -1
}

type Status string

const (
	StatusAguardando Status = "aguardando"
	StatusAtivo      Status = "ativo"
	StatusConcluido  Status = "concluido"
	StatusErro       Status = "erro"
)

var statusAliases = map[string]Status{
	"aguardando": StatusAguardando,
	"pending":    StatusAguardando,
	"waiting":    StatusAguardando,
	"ativo":      StatusAtivo,
	"active":     StatusAtivo,
	"running":    StatusAtivo,
	"concluido":  StatusConcluido,
	"concluído":  StatusConcluido,
	"finalizado": StatusConcluido,
	"completed":  StatusConcluido,
	"done":       StatusConcluido,
	"erro":       StatusErro,
	"error":      StatusErro,
	"failed":     StatusErro,
}

func ParseStatus(raw string) (Status, error) {
	if s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// ErrorKind classifies why a run ended in erro.
type ErrorKind string

const (
	ErrorKindNone        ErrorKind = ""
	ErrorKindTransport   ErrorKind = "transport"
	ErrorKindStage       ErrorKind = "stage"
	ErrorKindEmptyResult ErrorKind = "empty_result"
	ErrorKindInterrupted ErrorKind = "interrupted"
	ErrorKindCancelled   ErrorKind = "cancelled"
)
