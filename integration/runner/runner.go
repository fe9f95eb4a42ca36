package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/gm-engine/pkg/world"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running gm-engine API
type Runner struct {
	Client            *Client
	Timeout           time.Duration
	Logger            func(format string, args ...any)
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		Client:            NewClient(baseURL),
		Timeout:           30 * time.Second,
		Logger:            func(string, ...any) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes a complete test suite
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	gameStateID, err := r.seedGameState(ctx, suite.Seed)
	if err != nil {
		result.Error = fmt.Errorf("failed to seed gamestate: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.GameState = gameStateID
	defer func() {
		// Best effort; the session would expire anyway.
		_ = r.Client.DeleteGameState(context.WithoutCancel(ctx), gameStateID)
	}()

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, gameStateID, step, suite.Seed)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// seedGameState starts a new adventure and patches the seed delta onto it
func (r *Runner) seedGameState(ctx context.Context, seed map[string]any) (uuid.UUID, error) {
	id, err := r.Client.CreateGameState(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if len(seed) > 0 {
		if err := r.Client.PatchGameState(ctx, id, seed); err != nil {
			return uuid.Nil, err
		}
	}
	return id, nil
}

// resetGameState restarts the adventure and reapplies the seed delta
func (r *Runner) resetGameState(ctx context.Context, gameStateID uuid.UUID, seed map[string]any) error {
	if err := r.Client.ResetGameState(ctx, gameStateID); err != nil {
		return err
	}
	if len(seed) > 0 {
		return r.Client.PatchGameState(ctx, gameStateID, seed)
	}
	return nil
}

// runStep executes a single test step and checks expectations
// Will retry once on timeout errors without backoff
func (r *Runner) runStep(ctx context.Context, gameStateID uuid.UUID, step TestStep, seed map[string]any) TestResult {
	var result TestResult
	for attempt := 1; attempt <= 2; attempt++ {
		result = r.executeStep(ctx, gameStateID, step, seed)
		if result.Success || !isTimeout(result.Error) {
			return result
		}
		r.Logger("    Timeout detected, retrying step: %s", step.Name)
	}
	return result
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}

// executeStep performs the actual step execution
func (r *Runner) executeStep(ctx context.Context, gameStateID uuid.UUID, step TestStep, seed map[string]any) TestResult {
	start := time.Now()
	result := TestResult{StepName: step.Name}
	finish := func(err error) TestResult {
		result.Error = err
		result.Success = err == nil
		result.Duration = time.Since(start)
		return result
	}

	stepCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	if step.UserPrompt == ResetGameStatePrompt {
		result.IsReset = true
		result.ResponseText = "[GAMESTATE RESET]"
		if err := r.resetGameState(stepCtx, gameStateID, seed); err != nil {
			return finish(fmt.Errorf("failed to reset gamestate: %w", err))
		}
		ws, err := r.Client.GetWorld(stepCtx, gameStateID)
		if err != nil {
			return finish(fmt.Errorf("failed to get reset gamestate: %w", err))
		}
		if err := checkWorld(step.Expectations, ws); err != nil {
			return finish(fmt.Errorf("reset expectation failed: %w", err))
		}
		return finish(nil)
	}

	reply, err := r.Client.PostChat(stepCtx, gameStateID, step.UserPrompt)
	if err != nil {
		return finish(fmt.Errorf("failed to post chat: %w", err))
	}
	result.ResponseText = reply.Message
	result.Warnings = len(reply.Warnings)

	if err := checkExpectations(step.Expectations, reply); err != nil {
		return finish(fmt.Errorf("expectation failed: %w", err))
	}
	return finish(nil)
}

// checkExpectations validates a turn's narration and the world it produced
func checkExpectations(exp Expectations, reply *ChatReply) error {
	if err := checkResponse(exp, reply.Message); err != nil {
		return err
	}
	if exp.MaxWarnings != nil && len(reply.Warnings) > *exp.MaxWarnings {
		return fmt.Errorf("expected at most %d merge warnings, got %d: %v", *exp.MaxWarnings, len(reply.Warnings), reply.Warnings)
	}
	if reply.GameState == nil {
		return fmt.Errorf("response carried no game_state")
	}
	return checkWorld(exp, reply.GameState)
}

func checkWorld(exp Expectations, ws *world.WorldState) error {
	player := ws.Player()

	if exp.Location != nil {
		if got := ws.Location().String("name"); got != *exp.Location {
			return fmt.Errorf("expected location %s, got %s", *exp.Location, got)
		}
	}

	if exp.HP != nil {
		hp, ok := player.Int("hp")
		if !ok || hp != *exp.HP {
			return fmt.Errorf("expected hp %d, got %v", *exp.HP, player["hp"])
		}
	}

	// Full inventory check (order independent)
	if len(exp.Inventory) > 0 {
		inventory := player.Strings("inventory")
		expected := make(map[string]bool, len(exp.Inventory))
		for _, item := range exp.Inventory {
			expected[item] = true
		}
		actual := make(map[string]bool, len(inventory))
		for _, item := range inventory {
			actual[item] = true
		}
		for item := range expected {
			if !actual[item] {
				return fmt.Errorf("expected inventory to contain '%s', but it's missing. Actual inventory: %v", item, inventory)
			}
		}
		for item := range actual {
			if !expected[item] {
				return fmt.Errorf("inventory contains unexpected item '%s'. Expected inventory: %v, Actual: %v", item, exp.Inventory, inventory)
			}
		}
	}

	if len(exp.ActiveQuests) > 0 {
		active := make(map[string]bool)
		for _, q := range ws.ActiveQuests() {
			active[q.String(world.IdentityKey)] = true
		}
		for _, name := range exp.ActiveQuests {
			if !active[name] {
				return fmt.Errorf("expected quest %s to be active", name)
			}
		}
	}

	for _, name := range exp.NPCs {
		if _, ok := ws.NPC(name); !ok {
			return fmt.Errorf("expected NPC %s to exist, but it doesn't", name)
		}
	}

	if exp.MinEvents != nil {
		if n := len(ws.Events()); n < *exp.MinEvents {
			return fmt.Errorf("expected at least %d events, got %d", *exp.MinEvents, n)
		}
	}

	if len(exp.SummaryContains) > 0 {
		summary := ws.Summarize()
		for _, want := range exp.SummaryContains {
			if !strings.Contains(summary, want) {
				return fmt.Errorf("expected summary to contain %q", want)
			}
		}
	}

	return nil
}

func checkResponse(exp Expectations, responseText string) error {
	lowerResponse := strings.ToLower(responseText)
	for _, expectedText := range exp.ResponseContains {
		if !strings.Contains(lowerResponse, strings.ToLower(expectedText)) {
			return fmt.Errorf("expected response to contain '%s', but it didn't", expectedText)
		}
	}
	for _, unexpectedText := range exp.ResponseNotContains {
		if strings.Contains(lowerResponse, strings.ToLower(unexpectedText)) {
			return fmt.Errorf("expected response to NOT contain '%s', but it did", unexpectedText)
		}
	}

	if exp.ResponseRegex != "" {
		matched, err := regexp.MatchString(exp.ResponseRegex, responseText)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		if !matched {
			return fmt.Errorf("response didn't match regex pattern: %s", exp.ResponseRegex)
		}
	}

	if exp.ResponseMinLength != nil && len(responseText) < *exp.ResponseMinLength {
		return fmt.Errorf("expected response length >= %d, got %d", *exp.ResponseMinLength, len(responseText))
	}
	if exp.ResponseMaxLength != nil && len(responseText) > *exp.ResponseMaxLength {
		return fmt.Errorf("expected response length <= %d, got %d", *exp.ResponseMaxLength, len(responseText))
	}
	return nil
}
