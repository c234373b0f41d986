package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/siherrmann/excerpter/core/pipeline"
	"github.com/siherrmann/excerpter/model"
)

const (
	DefaultWorkers       = 8
	DefaultMaxChunkSize  = 16000
	DefaultRemoteTimeout = 60 * time.Second
)

// ErrNoAnswer is reported when an answer function returns neither an answer nor an error
var ErrNoAnswer = errors.New("no answer")

// Executor runs span inference over a batch of texts.
// It returns one candidate per text in input order, with SourceIndex set to
// the position of the text. Offsets refer to the full input text.
type Executor interface {
	Strategy() model.ExecutionStrategy
	Infer(ctx context.Context, question string, texts []string) ([]model.AnswerCandidate, error)
}

// Options configures the executor created by New
type Options struct {
	Strategy       model.ExecutionStrategy
	Workers        int
	MaxChunkSize   int
	RemoteEndpoint string
	RemoteTimeout  time.Duration
}

// New creates the executor for the configured strategy.
// The answer function is not used by the remote strategy and may be nil there.
func New(opts Options, answer pipeline.AnswerFunc, logger *slog.Logger) (Executor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch opts.Strategy {
	case model.StrategyLocalParallel:
		if answer == nil {
			return nil, fmt.Errorf("strategy %s needs a local answer model", opts.Strategy)
		}
		return NewParallelExecutor(answer, opts.Workers, logger), nil
	case model.StrategyLocalLargeContext:
		if answer == nil {
			return nil, fmt.Errorf("strategy %s needs a local answer model", opts.Strategy)
		}
		return NewLargeContextExecutor(answer, opts.MaxChunkSize, logger), nil
	case model.StrategyRemoteDelegated:
		if opts.RemoteEndpoint == "" {
			return nil, fmt.Errorf("strategy %s needs a remote endpoint", opts.Strategy)
		}
		return NewRemoteExecutor(opts.RemoteEndpoint, opts.RemoteTimeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown execution strategy %q", opts.Strategy)
	}
}
