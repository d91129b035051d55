package transcode

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// runTool invokes an external media tool with a hard wall-clock timeout.
// A timeout is reported the same way as a non-zero exit: the operation
// failed, not "still running".
func runTool(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	toolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(toolCtx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(toolCtx.Err(), context.DeadlineExceeded) {
			return output, fmt.Errorf("%s timed out after %s", name, timeout)
		}
		return output, fmt.Errorf("%s failed: %w, output: %s", name, err, truncateOutput(output))
	}
	return output, nil
}

func truncateOutput(output []byte) string {
	const max = 512
	if len(output) > max {
		return string(output[len(output)-max:])
	}
	return string(output)
}
