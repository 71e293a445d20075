package runner

import (
	"time"
)

// TestSuite is a scripted play session against a running scene-engine API.
// A suite either has Steps or references other Cases to run in order.
type TestSuite struct {
	Name  string     `json:"name"`
	Async bool       `json:"async,omitempty"` // Send commands with ?scene=async and poll for the scene
	Steps []TestStep `json:"steps,omitempty"`
	Cases []string   `json:"cases,omitempty"`
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep sends one command and checks what happened to the scene.
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	Command      string       `json:"command"`
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	OK         *bool  `json:"ok,omitempty"`
	LocationID string `json:"location_id,omitempty"`

	// Scene view
	HasImage     *bool `json:"has_image,omitempty"`
	SceneChanged *bool `json:"scene_changed,omitempty"` // Key differs from the previous step's
	Loading      *bool `json:"loading,omitempty"`

	// Cache counters, relative to the previous step
	MaxNewGenerations *int `json:"max_new_generations,omitempty"`

	// Response Analysis
	ResponseContains    []string `json:"response_contains,omitempty"`
	ResponseNotContains []string `json:"response_not_contains,omitempty"`
	ErrorContains       string   `json:"error_contains,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName     string
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	ResponseText string
	SceneKey     string
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	PlayerID string
	Duration time.Duration
	Error    error
}
