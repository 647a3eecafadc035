package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prepstack/testcenter-backend/internal/model"
)

// State is the controller lifecycle.
type State int

const (
	StateNegotiating State = iota
	StateActive
	StateSubmitting
	StateCompleted
	StateError
)

func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateActive:
		return "active"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	default:
		return "error"
	}
}

// ErrSubmitInProgress is returned when a second submission path is entered
// while one is already running or has completed. Manual and timeout submits
// are mutually exclusive; the loser is a no-op.
var ErrSubmitInProgress = errors.New("a submission is already in progress")

// ErrNotActive is returned for operations that require an active attempt.
var ErrNotActive = errors.New("no active attempt")

// Controller owns one attempt end to end: it negotiates the session, fetches
// the session-scoped paper, runs the countdown, and routes both submission
// paths through a single gate. The session identity is set exactly once, at
// negotiation, and never changes mid-attempt.
type Controller struct {
	backend    Backend
	negotiator *SessionNegotiator
	store      *HandleStore
	clock      Clock
	log        zerolog.Logger

	mu        sync.Mutex
	state     State
	testID    uuid.UUID
	session   *model.TestSession
	questions []model.QuestionForLearner
	result    *model.AttemptResult

	record    *AnswerRecord
	marks     *ReviewMarkSet
	navigator *QuestionNavigator
	syncer    *AnswerSynchronizer
	submitter *SubmissionCoordinator
	timer     *CountdownTimer

	// submitGate is taken by whichever submission path starts first. It is
	// released only when that submission fails, so the attempt can be
	// retried; success leaves it taken forever.
	submitGate atomic.Bool

	onTick       func(remaining time.Duration)
	onAutoSubmit func(result *model.AttemptResult, err error)
	onSyncFail   func(SyncFailure)
}

// ControllerOptions configures optional callbacks.
type ControllerOptions struct {
	// OnTick observes the countdown at 1 Hz.
	OnTick func(remaining time.Duration)
	// OnAutoSubmit observes the outcome of an expiry-triggered submission.
	OnAutoSubmit func(result *model.AttemptResult, err error)
	// OnSyncFailure observes failed answer pushes.
	OnSyncFailure func(SyncFailure)
}

// NewController creates a controller in the Negotiating state.
func NewController(
	backend Backend,
	decider Decider,
	store *HandleStore,
	clock Clock,
	opts ControllerOptions,
	log zerolog.Logger,
) *Controller {
	return &Controller{
		backend:      backend,
		negotiator:   NewSessionNegotiator(backend, decider, store, log),
		store:        store,
		clock:        clock,
		log:          log.With().Str("component", "controller").Logger(),
		state:        StateNegotiating,
		onTick:       opts.OnTick,
		onAutoSubmit: opts.OnAutoSubmit,
		onSyncFail:   opts.OnSyncFailure,
	}
}

// Start negotiates a session for the test and enters the Active state: the
// paper is fetched session-scoped and the countdown starts against the
// session's original deadline, so a resumed session reflects time already
// spent. A session found already expired is auto-submitted immediately with
// no interactive phase. A negotiation or fetch failure is terminal.
func (c *Controller) Start(ctx context.Context, testID uuid.UUID) error {
	c.mu.Lock()
	if c.state != StateNegotiating {
		c.mu.Unlock()
		return fmt.Errorf("cannot start from state %s", c.state)
	}
	c.testID = testID
	c.mu.Unlock()

	session, resumed, err := c.negotiator.Negotiate(ctx, testID)
	if err != nil {
		c.setState(StateError)
		return err
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	// A reload after expiry resumes straight into auto-submit: the deadline
	// passed while nobody was watching.
	if !c.clock().Before(session.ExpiresAt) {
		c.log.Info().
			Str("session_id", session.ID.String()).
			Msg("Session already expired at resume, auto-submitting")
		c.mu.Lock()
		c.buildComponents()
		c.mu.Unlock()
		return c.TriggerTimeout(ctx)
	}

	questions, err := c.backend.Questions(ctx, testID, session.ID)
	if err != nil {
		c.setState(StateError)
		return fmt.Errorf("fetch questions: %w", err)
	}

	c.mu.Lock()
	c.questions = questions
	c.buildComponents()
	c.timer = NewCountdownTimer(session.ExpiresAt, c.clock, c.onTick, func() {
		// Detached from the tick goroutine; the gate makes a racing manual
		// submit harmless. TriggerTimeout reports its outcome through
		// OnAutoSubmit.
		go func() { _ = c.TriggerTimeout(context.Background()) }()
	})
	c.state = StateActive
	c.mu.Unlock()

	c.timer.Start()

	c.log.Info().
		Str("session_id", session.ID.String()).
		Bool("resumed", resumed).
		Int("questions", len(questions)).
		Dur("remaining", session.ExpiresAt.Sub(c.clock())).
		Msg("Attempt active")
	return nil
}

// buildComponents wires the per-session pieces. Caller holds c.mu.
func (c *Controller) buildComponents() {
	c.record = NewAnswerRecord()
	c.marks = NewReviewMarkSet()
	c.navigator = NewQuestionNavigator(c.questions, c.record, c.marks)
	c.syncer = NewAnswerSynchronizer(c.backend, c.record, c.testID, c.session.ID, c.onSyncFail, c.log)
	c.submitter = NewSubmissionCoordinator(c.backend, c.record, c.marks, c.session, len(c.questions), c.clock, c.log)
}

// ConfirmManualSubmit is the manual path: called after the user has seen the
// summary and confirmed. No-op with ErrSubmitInProgress if the timeout path
// already started.
func (c *Controller) ConfirmManualSubmit(ctx context.Context) (*model.AttemptResult, error) {
	return c.submit(ctx, false)
}

// TriggerTimeout is the expiry path: confirmation is skipped entirely. No-op
// with ErrSubmitInProgress if a manual submit already started.
func (c *Controller) TriggerTimeout(ctx context.Context) error {
	result, err := c.submit(ctx, true)
	if errors.Is(err, ErrSubmitInProgress) {
		return nil
	}
	if c.onAutoSubmit != nil && (result != nil || err != nil) {
		c.onAutoSubmit(result, err)
	}
	return err
}

// submit is the single funnel both paths share. The gate admits exactly one
// submission at a time; it reopens only on failure so the user can retry
// without losing the session or answers.
func (c *Controller) submit(ctx context.Context, auto bool) (*model.AttemptResult, error) {
	if !c.submitGate.CompareAndSwap(false, true) {
		return nil, ErrSubmitInProgress
	}

	c.mu.Lock()
	if c.session == nil || c.submitter == nil {
		c.mu.Unlock()
		c.submitGate.Store(false)
		return nil, ErrNotActive
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.state = StateSubmitting
	submitter := c.submitter
	c.mu.Unlock()

	result, err := submitter.Submit(ctx)
	if err != nil {
		// Session and answers stay intact; either path may retry.
		c.mu.Lock()
		c.state = StateActive
		c.mu.Unlock()
		c.submitGate.Store(false)
		return nil, err
	}

	c.mu.Lock()
	c.result = result
	c.state = StateCompleted
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Clear(c.testID); err != nil {
			c.log.Warn().Err(err).Msg("Failed to clear session handle")
		}
	}

	c.log.Info().
		Bool("auto", auto).
		Float64("marks", result.MarksObtained).
		Msg("Attempt completed")
	return result, nil
}

// Exit detaches without contacting the backend: the visible countdown stops,
// but the session and its server-side deadline keep running, so the learner
// can come back and resume. Outstanding answer pushes are not cancelled.
func (c *Controller) Exit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.log.Info().Msg("Detached from attempt, session stays open")
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the attempt's session, or nil before negotiation finishes.
func (c *Controller) Session() *model.TestSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Result returns the scored result once Completed, else nil.
func (c *Controller) Result() *model.AttemptResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Remaining reports time left on the session deadline.
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return 0
	}
	remaining := session.ExpiresAt.Sub(c.clock())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Navigator exposes the paper navigation for the active attempt.
func (c *Controller) Navigator() *QuestionNavigator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.navigator
}

// Answers exposes the answer synchronizer for the active attempt.
func (c *Controller) Answers() *AnswerSynchronizer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncer
}

// Marks exposes the review-mark set for the active attempt.
func (c *Controller) Marks() *ReviewMarkSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.marks
}

// Summary builds the pre-submit overview.
func (c *Controller) Summary() (Summary, error) {
	c.mu.Lock()
	submitter := c.submitter
	c.mu.Unlock()
	if submitter == nil {
		return Summary{}, ErrNotActive
	}
	return submitter.BuildSummary(), nil
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
