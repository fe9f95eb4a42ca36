package runner

import (
	"time"

	"github.com/google/uuid"
)

// Special user prompt values that trigger non-chat actions
const (
	ResetGameStatePrompt = "RESET_GAMESTATE"
)

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name  string         `json:"name"`
	Seed  map[string]any `json:"seed,omitempty"`  // Delta patched onto the fresh world before the first step
	Steps []TestStep     `json:"steps,omitempty"` // Used for regular tests
	Cases []string       `json:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep defines a single test interaction and its expected outcomes
// Use user_prompt: "RESET_GAMESTATE" to restart the adventure and reapply the seed
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	UserPrompt   string       `json:"user_prompt"`
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	// World properties
	Location        *string  `json:"location,omitempty"`         // Current location name
	Inventory       []string `json:"inventory,omitempty"`        // Full inventory contents (order independent)
	HP              *int     `json:"hp,omitempty"`               // Exact player hp
	ActiveQuests    []string `json:"active_quests,omitempty"`    // Quest names that must be active
	NPCs            []string `json:"npcs,omitempty"`             // NPC names that must exist
	MinEvents       *int     `json:"min_events,omitempty"`       // Lower bound on the event log length
	MaxWarnings     *int     `json:"max_warnings,omitempty"`     // Upper bound on merge warnings for the turn
	SummaryContains []string `json:"summary_contains,omitempty"` // Lines expected in the narrator summary

	// Response Analysis
	ResponseContains    []string `json:"response_contains,omitempty"`
	ResponseNotContains []string `json:"response_not_contains,omitempty"`
	ResponseRegex       string   `json:"response_regex,omitempty"`
	ResponseMinLength   *int     `json:"response_min_length,omitempty"`
	ResponseMaxLength   *int     `json:"response_max_length,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName     string
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	ResponseText string
	Warnings     int
	IsReset      bool // True if this was a RESET_GAMESTATE step (should not count toward pass/fail metrics)
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job       TestJob
	Results   []TestResult
	GameState uuid.UUID
	Duration  time.Duration
	Error     error
}
