package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jwebster45206/scene-engine/internal/handlers"
	"github.com/jwebster45206/scene-engine/internal/services"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// DefaultPollInterval is how often async suites check the scene state.
const DefaultPollInterval = 250 * time.Millisecond

// Runner executes integration tests against a running scene-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	PollInterval      time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 180 * time.Second},
		Timeout:           150 * time.Second,
		PollInterval:      DefaultPollInterval,
		Logger:            func(string, ...interface{}) {},
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

// stepState is what the runner carries from one step to the next.
type stepState struct {
	playerID    string
	sceneKey    string
	generations uint64
	hasBaseline bool
}

// RunSuite plays every step as a fresh player.
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	var st stepState
	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, suite, step, &st)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)
		result.PlayerID = st.playerID

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

func (r *Runner) runStep(ctx context.Context, suite TestSuite, step TestStep, st *stepState) TestResult {
	start := time.Now()
	res := TestResult{StepName: step.Name}

	stepCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	reply, err := r.sendCommand(stepCtx, step.Command, st.playerID, suite.Async)
	if err != nil {
		res.Error = err
		res.Duration = time.Since(start)
		return res
	}
	res.ResponseText = strings.Join(reply.Messages, "\n")
	if reply.PlayerID != "" {
		st.playerID = reply.PlayerID
	}

	var state *handlers.SceneStateResponse
	if st.playerID != "" {
		if suite.Async {
			state, err = r.waitForScene(stepCtx, st.playerID, expectedKey(reply))
		} else {
			state, err = r.getSceneState(stepCtx, st.playerID)
		}
		if err != nil {
			res.Error = err
			res.Duration = time.Since(start)
			return res
		}
	}

	res.Error = r.checkExpectations(step.Expectations, reply, state, st)

	if state != nil {
		res.SceneKey = string(state.Scene.CurrentKey)
		st.sceneKey = res.SceneKey
		st.generations = state.Cache.ProducerCalls
		st.hasBaseline = true
	}
	res.Success = res.Error == nil
	res.Duration = time.Since(start)
	return res
}

// sendCommand posts one command through the scene engine's proxy.
func (r *Runner) sendCommand(ctx context.Context, text, playerID string, async bool) (*handlers.CommandResult, error) {
	body, err := json.Marshal(services.CommandRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	endpoint := r.BaseURL + "/v1/command"
	if async {
		endpoint += "?scene=async"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create command request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if playerID != "" {
		req.Header.Set(services.PlayerIDHeader, playerID)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read command response: %w", err)
	}

	var result handlers.CommandResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("command endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("command endpoint returned %d: %s", resp.StatusCode, result.Error)
	}
	return &result, nil
}

func (r *Runner) getSceneState(ctx context.Context, playerID string) (*handlers.SceneStateResponse, error) {
	endpoint := r.BaseURL + "/v1/scene/state?player=" + url.QueryEscape(playerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create state request: %w", err)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get scene state: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene state: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scene state returned %d: %s", resp.StatusCode, string(body))
	}

	var state handlers.SceneStateResponse
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("failed to parse scene state: %w", err)
	}
	return &state, nil
}

// expectedKey derives the scene key the reply's state should settle on.
func expectedKey(reply *handlers.CommandResult) scene.Key {
	if len(reply.State) == 0 {
		return ""
	}
	var snap scene.Snapshot
	if err := json.Unmarshal(reply.State, &snap); err != nil {
		return ""
	}
	key, _ := snap.Descriptor().Key()
	return key
}

// waitForScene polls the scene state until the view shows want and the
// foreground scene has settled. An empty want only waits for the settle.
func (r *Runner) waitForScene(ctx context.Context, playerID string, want scene.Key) (*handlers.SceneStateResponse, error) {
	interval := r.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state, err := r.getSceneState(ctx, playerID)
		if err != nil {
			return nil, err
		}
		if !state.Scene.Loading && (want == "" || state.Scene.CurrentKey == want) {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for scene: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *Runner) checkExpectations(exp Expectations, reply *handlers.CommandResult, state *handlers.SceneStateResponse, prev *stepState) error {
	var errs []error

	if exp.OK != nil && reply.OK != *exp.OK {
		errs = append(errs, fmt.Errorf("expected ok=%v, got %v (error: %q)", *exp.OK, reply.OK, reply.Error))
	}
	if exp.ErrorContains != "" && !strings.Contains(reply.Error, exp.ErrorContains) {
		errs = append(errs, fmt.Errorf("expected error containing %q, got %q", exp.ErrorContains, reply.Error))
	}

	if exp.LocationID != "" {
		var snap scene.Snapshot
		if len(reply.State) > 0 {
			if err := json.Unmarshal(reply.State, &snap); err != nil {
				errs = append(errs, fmt.Errorf("failed to parse state: %w", err))
			}
		}
		got := ""
		if snap.Location != nil {
			got = snap.Location.ID
		}
		if got != exp.LocationID {
			errs = append(errs, fmt.Errorf("expected location %q, got %q", exp.LocationID, got))
		}
	}

	for _, want := range exp.ResponseContains {
		if !strings.Contains(strings.Join(reply.Messages, "\n"), want) {
			errs = append(errs, fmt.Errorf("expected response to contain %q", want))
		}
	}
	for _, unwanted := range exp.ResponseNotContains {
		if strings.Contains(strings.Join(reply.Messages, "\n"), unwanted) {
			errs = append(errs, fmt.Errorf("expected response not to contain %q", unwanted))
		}
	}

	needsState := exp.HasImage != nil || exp.SceneChanged != nil || exp.Loading != nil || exp.MaxNewGenerations != nil
	if !needsState {
		return errors.Join(errs...)
	}
	if state == nil {
		errs = append(errs, errors.New("scene expectations need a player id, but none was returned"))
		return errors.Join(errs...)
	}

	view := state.Scene
	if exp.HasImage != nil && view.HasImage() != *exp.HasImage {
		errs = append(errs, fmt.Errorf("expected has_image=%v, got %v", *exp.HasImage, view.HasImage()))
	}
	if exp.Loading != nil && view.Loading != *exp.Loading {
		errs = append(errs, fmt.Errorf("expected loading=%v, got %v", *exp.Loading, view.Loading))
	}
	if exp.SceneChanged != nil {
		changed := string(view.CurrentKey) != prev.sceneKey
		if changed != *exp.SceneChanged {
			errs = append(errs, fmt.Errorf("expected scene_changed=%v, got %v (key %s)", *exp.SceneChanged, changed, view.CurrentKey.Short()))
		}
	}
	if exp.MaxNewGenerations != nil {
		if !prev.hasBaseline {
			errs = append(errs, errors.New("max_new_generations needs a previous step to compare against"))
		} else if n := int(state.Cache.ProducerCalls - prev.generations); n > *exp.MaxNewGenerations {
			errs = append(errs, fmt.Errorf("expected at most %d new generations, got %d", *exp.MaxNewGenerations, n))
		}
	}

	return errors.Join(errs...)
}
