package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/barefootzenith/supportmesh/model"
)

// Summarizer condenses a run of turns into a fixed-length summary text.
type Summarizer interface {
	Summarize(ctx context.Context, turns []Turn, targetPoints int) (string, error)
}

// ModelSummarizer implements Summarizer over a language model.
type ModelSummarizer struct {
	Model model.Model
}

// Summarize requests a bullet-point condensation of the given turns. Order
// numbers, decisions and policy details are called out explicitly so the
// model preserves them across compression cycles.
func (s ModelSummarizer) Summarize(ctx context.Context, turns []Turn, targetPoints int) (string, error) {
	if targetPoints < 1 {
		targetPoints = 4
	}
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(strings.ToUpper(string(t.Role)))
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteString("\n\n")
	}
	prompt := fmt.Sprintf(`Summarize the following conversation in %d key bullet points.
Preserve important details such as order numbers, decisions made, and policies mentioned.

CONVERSATION:
%s
SUMMARY (%d bullet points):`, targetPoints, b.String(), targetPoints)

	res, err := s.Model.Generate(ctx, model.Request{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("summarize conversation: %w", err)
	}
	return strings.TrimSpace(res.Text), nil
}
