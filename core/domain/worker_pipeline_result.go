package domain

import (
	"crypto/sha1"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResultDateLayout is the timestamp layout used for run dates and output directory names.
const ResultDateLayout = "2006-01-02_15-04-05"

// =============================================================================
// Pipeline Envelope
// =============================================================================

// PipelineResult is the envelope handed from one pipeline step to the next.
type PipelineResult struct {
	Meta    MetaData       `json:"meta"`
	Results []Result       `json:"results"`
	Usage   map[string]int `json:"usage,omitempty"`
}

// MetaData describes a whole pipeline run.
type MetaData struct {
	Keyword                   string      `json:"keyword"`
	Country                   string      `json:"country,omitempty"`
	NumberOfResults           int         `json:"numberOfResults"`
	NumberOfResultsAfterStage int         `json:"numberOfResultsAfterStage"`
	ResultDate                string      `json:"resultDate"`
	UUID                      string      `json:"uuid"`
	Nonce                     string      `json:"nonce,omitempty"`
	Stages                    []StageMeta `json:"stages,omitempty"`
}

// StageMeta records what one step did to the result collection.
type StageMeta struct {
	Name                      string  `json:"name"`
	NumberOfResultsAfterStage int     `json:"numberOfResultsAfterStage"`
	ElapsedSeconds            float64 `json:"elapsedSeconds"`
}

// NewMetaData builds run metadata stamped at now.
func NewMetaData(keyword, country string, numberOfResults int, now time.Time) MetaData {
	date := now.UTC().Format(ResultDateLayout)
	return MetaData{
		Keyword:         keyword,
		Country:         country,
		NumberOfResults: numberOfResults,
		ResultDate:      date,
		UUID:            NewRunUUID(keyword, date),
	}
}

// NewRunUUID derives a stable run id from the keyword and the run date:
// the first 16 bytes of sha1(keyword + date).
func NewRunUUID(keyword, resultDate string) string {
	sum := sha1.Sum([]byte(keyword + resultDate))
	id, err := uuid.FromBytes(sum[:16])
	if err != nil {
		// FromBytes only fails on a length mismatch
		panic(fmt.Sprintf("run uuid: %v", err))
	}
	return id.String()
}

// Distinguish salts the run id with nonce, for callers that may start several
// runs of one keyword within the same second. An empty nonce is a no-op.
func (m *MetaData) Distinguish(nonce string) {
	if nonce == "" {
		return
	}
	m.Nonce = nonce
	m.UUID = NewRunUUID(m.Keyword, m.ResultDate+"_"+nonce)
}

// NewPipelineResult wraps the given results in a fresh envelope.
func NewPipelineResult(keyword, country string, results []Result, now time.Time) *PipelineResult {
	for i := range results {
		results[i].Index = i
	}
	meta := NewMetaData(keyword, country, len(results), now)
	meta.NumberOfResultsAfterStage = len(results)
	return &PipelineResult{
		Meta:    meta,
		Results: results,
		Usage:   map[string]int{},
	}
}

// URLs returns the result urls in order.
func (p *PipelineResult) URLs() []string {
	urls := make([]string, len(p.Results))
	for i, r := range p.Results {
		urls[i] = r.URL
	}
	return urls
}

// AddStage replaces the results with the output of a step and records the stage.
// The after-stage count always equals len(results).
func (p *PipelineResult) AddStage(name string, results []Result, elapsed time.Duration, usage map[string]int) *PipelineResult {
	merged := make(map[string]int, len(p.Usage)+len(usage))
	for k, v := range p.Usage {
		merged[k] = v
	}
	for k, v := range usage {
		merged[k] += v
	}

	meta := p.Meta
	meta.Stages = append(append([]StageMeta(nil), p.Meta.Stages...), StageMeta{
		Name:                      name,
		NumberOfResultsAfterStage: len(results),
		ElapsedSeconds:            elapsed.Seconds(),
	})
	meta.NumberOfResultsAfterStage = len(results)

	return &PipelineResult{
		Meta:    meta,
		Results: results,
		Usage:   merged,
	}
}
