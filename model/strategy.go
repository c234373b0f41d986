package model

import "fmt"

// ExecutionStrategy selects how inference is run
type ExecutionStrategy string

const (
	// StrategyLocalParallel runs one inference per text on a bounded worker pool
	StrategyLocalParallel ExecutionStrategy = "local-parallel"
	// StrategyLocalLargeContext runs inference sequentially over large chunks of every text
	StrategyLocalLargeContext ExecutionStrategy = "local-large-context"
	// StrategyRemoteDelegated sends the whole batch to a remote scoring endpoint
	StrategyRemoteDelegated ExecutionStrategy = "remote-delegated"
)

// Accelerator names accepted in the configuration
const (
	AcceleratorCPU   = "cpu"
	AcceleratorGPU   = "gpu"
	AcceleratorColab = "colab"
)

// StrategyForAccelerator maps an accelerator name to its execution strategy
func StrategyForAccelerator(accelerator string) (ExecutionStrategy, error) {
	switch accelerator {
	case AcceleratorCPU, "":
		return StrategyLocalParallel, nil
	case AcceleratorGPU:
		return StrategyLocalLargeContext, nil
	case AcceleratorColab:
		return StrategyRemoteDelegated, nil
	default:
		return "", fmt.Errorf("unknown accelerator %q", accelerator)
	}
}

// Pools reports whether the strategy works on a pooled, re-chunked text
// instead of whole documents.
func (s ExecutionStrategy) Pools() bool {
	return s == StrategyLocalParallel
}
