package pipeline

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Run is the state shared by the steps of one pipeline run: its output
// directory, the step counter used in snapshot names, and the status.
type Run struct {
	Dir  string
	sink out.SnapshotSink
	log  zerolog.Logger

	mu      sync.Mutex
	counter int
	status  string
}

// RunDirName returns "<resultDate>_<keyword>_<user>".
func RunDirName(resultDate, keyword, user string) string {
	clean := strings.NewReplacer("/", "-", `\`, "-").Replace(strings.TrimSpace(keyword))
	return fmt.Sprintf("%s_%s_%s", resultDate, clean, user)
}

// NewRun creates the run state. A nonce in meta is appended to the directory. sink may be nil to skip snapshots.
func NewRun(meta domain.MetaData, user string, sink out.SnapshotSink, log zerolog.Logger) *Run {
	dir := RunDirName(meta.ResultDate, meta.Keyword, user)
	if meta.Nonce != "" {
		dir += "_" + meta.Nonce
	}
	return &Run{
		Dir:    dir,
		sink:   sink,
		log:    log.With().Str("run", meta.UUID).Logger(),
		status: domain.RunStatusRunning,
	}
}

// Store writes result as "<dir>/<n>_<filename>", n counting stored steps.
func (r *Run) Store(ctx context.Context, filename string, result *domain.PipelineResult) (string, error) {
	r.mu.Lock()
	r.counter++
	name := path.Join(r.Dir, fmt.Sprintf("%d_%s", r.counter, filename))
	r.mu.Unlock()

	if r.sink == nil {
		return name, nil
	}
	if err := r.sink.Put(ctx, name, result); err != nil {
		return name, apperr.StorageError("store snapshot "+name, err)
	}
	r.log.Debug().Str("snapshot", name).Msg("snapshot stored")
	return name, nil
}

func (r *Run) SetStatus(status string) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
}

func (r *Run) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// LoadSnapshot reads a stored envelope, e.g. to resume a run at a later step.
func LoadSnapshot(file string) (*domain.PipelineResult, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var result domain.PipelineResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", file, err)
	}
	if result.Usage == nil {
		result.Usage = map[string]int{}
	}
	for i := range result.Results {
		result.Results[i].Index = i
	}
	result.Meta.NumberOfResultsAfterStage = len(result.Results)
	return &result, nil
}
