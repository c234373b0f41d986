package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/siherrmann/excerpter/model"
)

// RemoteRequest is the body sent to a remote scoring endpoint
type RemoteRequest struct {
	Question string   `json:"question"`
	Docs     []string `json:"docs"`
}

type remoteCandidate struct {
	Score  *float64 `json:"score"`
	Start  *int     `json:"start"`
	End    *int     `json:"end"`
	Answer string   `json:"answer"`
}

// RemoteExecutor delegates the whole batch to a remote scoring endpoint in one request
type RemoteExecutor struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger
}

// NewRemoteExecutor creates a remote-delegated executor, timeout <= 0 uses DefaultRemoteTimeout
func NewRemoteExecutor(endpoint string, timeout time.Duration, logger *slog.Logger) *RemoteExecutor {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &RemoteExecutor{
		endpoint: endpoint,
		timeout:  timeout,
		client:   &http.Client{},
		logger:   logger,
	}
}

func (e *RemoteExecutor) Strategy() model.ExecutionStrategy {
	return model.StrategyRemoteDelegated
}

// Infer posts {"question", "docs"} and expects an array of
// {"score", "start", "end", "answer"} in submission order.
// Any failure, including the timeout, fails the whole batch. There is no retry.
func (e *RemoteExecutor) Infer(ctx context.Context, question string, texts []string) ([]model.AnswerCandidate, error) {
	if len(texts) == 0 {
		return []model.AnswerCandidate{}, nil
	}

	body, err := json.Marshal(RemoteRequest{Question: question, Docs: texts})
	if err != nil {
		return nil, &model.InferenceFailure{Index: -1, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &model.InferenceFailure{Index: -1, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("Remote inference request failed", slog.String("endpoint", e.endpoint), slog.Any("error", err))
		return nil, &model.InferenceFailure{Index: -1, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.InferenceFailure{Index: -1, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.logger.Error("Remote inference returned an error status", slog.Int("status", resp.StatusCode))
		return nil, &model.InferenceFailure{Index: -1, Raw: string(raw), Err: fmt.Errorf("remote endpoint returned status %d", resp.StatusCode)}
	}

	candidates, err := decodeCandidates(raw, texts)
	if err != nil {
		e.logger.Error("Remote inference returned an invalid response", slog.Any("error", err))
		return nil, err
	}

	e.logger.Debug("Remote inference finished", slog.Int("texts", len(texts)), slog.Duration("duration", time.Since(started)))

	return candidates, nil
}

func decodeCandidates(raw []byte, texts []string) ([]model.AnswerCandidate, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &model.InferenceFailure{Index: -1, Raw: string(raw), Err: fmt.Errorf("malformed response: %w", err)}
	}
	if len(items) != len(texts) {
		return nil, &model.InferenceFailure{Index: -1, Raw: string(raw), Err: fmt.Errorf("expected %d candidates, got %d", len(texts), len(items))}
	}

	candidates := make([]model.AnswerCandidate, len(items))
	for i, item := range items {
		var c remoteCandidate
		if err := json.Unmarshal(item, &c); err != nil {
			return nil, &model.InferenceFailure{Index: i, Raw: string(item), Err: fmt.Errorf("malformed candidate: %w", err)}
		}
		if c.Score == nil || c.Start == nil || c.End == nil {
			return nil, &model.InferenceFailure{Index: i, Raw: string(item), Err: errors.New("candidate misses score, start or end")}
		}

		candidate := model.AnswerCandidate{
			SourceIndex: i,
			Start:       *c.Start,
			End:         *c.End,
			Score:       *c.Score,
			Answer:      c.Answer,
		}
		if err := candidate.Validate(model.RuneLen(texts[i])); err != nil {
			return nil, &model.InferenceFailure{Index: i, Raw: string(item), Err: err}
		}
		candidates[i] = candidate
	}

	return candidates, nil
}
