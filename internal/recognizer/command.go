package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// CommandStrategy is the command-subprocess recognizer variant (spec.md
// §4.5 strategy 5): writes the transcript to a fresh subprocess's standard
// input and parses its standard output as JSON.
type CommandStrategy struct {
	Path string
	Args []string
}

// NewCommandStrategy configures a command-subprocess recognizer.
func NewCommandStrategy(path string, args []string) *CommandStrategy {
	return &CommandStrategy{Path: path, Args: args}
}

// Recognize implements Strategy.
func (s *CommandStrategy) Recognize(text string, speechConfidence float64) (Result, error) {
	cmd := exec.CommandContext(context.Background(), s.Path, s.Args...)
	cmd.Stdin = bytes.NewReader([]byte(text))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return emptyResult(text, speechConfidence), fmt.Errorf("recognizer: command failed: %w (stderr: %s)", err, stderr.String())
	}

	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return emptyResult(text, speechConfidence), fmt.Errorf("recognizer: parse command output: %w", err)
	}
	result.SpeechConfidence = speechConfidence
	if result.Entities == nil {
		result.Entities = []Entity{}
	}
	return result, nil
}
