package interview

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/oklog/ulid/v2"

	"github.com/intervai-dev/intervai/internal/clock"
	"github.com/intervai-dev/intervai/internal/connectivity"
	"github.com/intervai-dev/intervai/internal/countdown"
	"github.com/intervai-dev/intervai/internal/log"
	"github.com/intervai-dev/intervai/internal/score"
	"github.com/intervai-dev/intervai/internal/session"
	"github.com/intervai-dev/intervai/internal/transport"
)

// DefaultFollowupThreshold is the normalized score below which a follow-up
// question is requested automatically.
const DefaultFollowupThreshold = 7

// Transport is the remote side of a session.
type Transport interface {
	RequestQuestion(ctx context.Context, sessionID string) (transport.Question, error)
	SubmitAnswer(ctx context.Context, sessionID, answer string) (transport.Feedback, error)
	RequestFollowup(ctx context.Context, sessionID string) (transport.Question, error)
	EndSession(ctx context.Context, sessionID string) (transport.Ack, error)
}

// Store persists the active-session record and finished sessions.
type Store interface {
	SaveActive(snap session.Snapshot) error
	EndActive(sessionID string, at time.Time) error
	AppendHistory(h session.HistoryEntry) (session.HistoryEntry, error)
}

// Config wires an Orchestrator to its collaborators. Store, Logger and Cues
// are optional.
type Config struct {
	Session   session.Session
	Transport Transport
	Monitor   connectivity.Monitor
	Clock     clock.Clock
	Store     Store
	Logger    *log.Logger
	Cues      countdown.CuePlayer

	FollowupThreshold float64
	RequestTimeout    time.Duration

	// Restore resumes from a saved snapshot of the same session.
	Restore *session.Snapshot
}

// Summary is what a finished (or running) session hands to the summary view.
type Summary struct {
	Session    session.Session
	Transcript []session.Entry
	Stats      score.Stats
	Remote     *transport.Summary
	HistoryID  string
}

// Orchestrator owns one session. It is not safe for concurrent use; call
// every method from the event loop.
type Orchestrator struct {
	sess      session.Session
	transport Transport
	monitor   connectivity.Monitor
	clk       clock.Clock
	store     Store
	logger    *log.Logger

	timer     *countdown.Controller
	scores    *score.Aggregator
	threshold float64
	timeout   time.Duration
	entropy   io.Reader

	state      State
	transcript []session.Entry
	active     int    // index of the active question, -1 when none
	seq        uint64 // tags the single in-flight question or answer request
	followUp   bool   // the in-flight question request is a follow-up
	endedAt    time.Time
	remote     *transport.Summary
	historyID  string
	stop       chan struct{} // closed on End; releases the connectivity listener

	lastErr error
	notice  string
}

// New creates an Orchestrator in the Idle state, or in the state implied by
// cfg.Restore.
func New(cfg Config) *Orchestrator {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	if cfg.Session.StartedAt.IsZero() {
		cfg.Session.StartedAt = clk.Now()
	}
	threshold := cfg.FollowupThreshold
	if threshold <= 0 {
		threshold = DefaultFollowupThreshold
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = transport.DefaultTimeout
	}

	o := &Orchestrator{
		sess:      cfg.Session,
		transport: cfg.Transport,
		monitor:   cfg.Monitor,
		clk:       clk,
		store:     cfg.Store,
		logger:    cfg.Logger,
		scores:    score.NewAggregator(cfg.Session.StartedAt),
		threshold: threshold,
		timeout:   timeout,
		entropy:   ulid.Monotonic(rand.Reader, 0),
		active:    -1,
		stop:      make(chan struct{}),
	}
	o.timer = countdown.New(clk, timerEvents{o}, cfg.Cues)

	if snap := cfg.Restore; snap != nil && snap.Session.ID == cfg.Session.ID {
		o.transcript = append([]session.Entry(nil), snap.Transcript...)
		o.scores.Restore(snap.Stats)
		if n := len(o.transcript); n > 0 && o.transcript[n-1].Kind == session.KindQuestion {
			o.active = n - 1
			o.state = QuestionActive
		}
	}
	return o
}

// Init starts listening for connectivity changes and, for a restored
// session with an open question, re-arms its countdown.
func (o *Orchestrator) Init() tea.Cmd {
	cmds := []tea.Cmd{o.listenConnectivity()}
	if o.state == QuestionActive {
		cmds = append(cmds, o.armTimer())
	}
	return tea.Batch(cmds...)
}

// ============================================================================
// Operations
// ============================================================================

// GenerateQuestion requests the next question. It is a no-op while a
// question is active or a request is already in flight.
func (o *Orchestrator) GenerateQuestion() (tea.Cmd, error) {
	return o.requestQuestion(false, false)
}

// RequestFollowup asks for a follow-up to the last answered question. It
// has the same guards as GenerateQuestion, except that a question whose
// time has run out is retired in favour of the follow-up.
func (o *Orchestrator) RequestFollowup() (tea.Cmd, error) {
	if o.state == QuestionActive && o.timer.Expired() {
		o.retireExpired()
	}
	return o.requestQuestion(true, false)
}

func (o *Orchestrator) requestQuestion(followUp, auto bool) (tea.Cmd, error) {
	switch o.state {
	case Ended:
		return nil, ErrSessionEnded
	case AwaitingQuestion, QuestionActive, Submitting:
		return nil, nil
	}

	op := transport.OpQuestion
	if followUp {
		op = transport.OpFollowup
	}
	if !o.online() {
		err := transport.Offline(op)
		o.fail(err)
		return nil, err
	}

	o.clearMessages()
	o.state = AwaitingQuestion
	o.followUp = followUp
	o.seq++
	seq, id, timeout, tr := o.seq, o.sess.ID, o.timeout, o.transport

	event := log.EventQuestionRequested
	if followUp {
		event = log.EventFollowupRequested
	}
	o.log(log.LogEvent{Event: event, Op: op})

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		var (
			q   transport.Question
			err error
		)
		if followUp {
			q, err = tr.RequestFollowup(ctx, id)
		} else {
			q, err = tr.RequestQuestion(ctx, id)
		}
		return QuestionMsg{seq: seq, FollowUp: followUp, Auto: auto, Question: q, Err: err}
	}, nil
}

// SubmitAnswer sends text as the answer to the active question. The answer
// is appended to the transcript before the request goes out.
func (o *Orchestrator) SubmitAnswer(text string) (tea.Cmd, error) {
	switch o.state {
	case Ended:
		return nil, ErrSessionEnded
	case Submitting:
		return nil, ErrSubmissionInFlight
	case QuestionActive:
	default:
		return nil, ErrNoActiveQuestion
	}

	answer := strings.TrimSpace(text)
	if answer == "" {
		return nil, ErrEmptyAnswer
	}
	if o.timer.Expired() {
		return nil, ErrTimeExpired
	}
	if !o.online() {
		err := transport.Offline(transport.OpAnswer)
		o.fail(err)
		return nil, err
	}

	o.clearMessages()
	o.appendEntry(session.Entry{Kind: session.KindAnswer, Content: answer})
	o.state = Submitting
	o.seq++
	o.persist()
	o.log(log.LogEvent{Event: log.EventAnswerSubmitted})

	seq, id, timeout, tr := o.seq, o.sess.ID, o.timeout, o.transport
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		fb, err := tr.SubmitAnswer(ctx, id, answer)
		return FeedbackMsg{seq: seq, Feedback: fb, Err: err}
	}, nil
}

// End finalizes the session locally and notifies the service once. Local
// finalization never depends on the notification: when offline the
// notification is skipped and an Offline error is returned, but the
// session is ended all the same.
func (o *Orchestrator) End() (tea.Cmd, error) {
	if o.state == Ended {
		return nil, ErrSessionEnded
	}

	o.timer.Disarm()
	o.state = Ended
	close(o.stop)
	o.active = -1
	o.endedAt = o.clk.Now()
	ended := o.endedAt.UTC()
	o.sess.EndedAt = &ended
	o.clearMessages()
	o.finalize()

	if !o.online() {
		err := transport.Offline(transport.OpEnd)
		o.lastErr = err
		o.log(log.LogEvent{Event: log.EventEndNotifyFailed, Op: transport.OpEnd, Kind: string(transport.KindOffline)})
		return nil, err
	}

	id, timeout, tr := o.sess.ID, o.timeout, o.transport
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ack, err := tr.EndSession(ctx, id)
		return EndAckMsg{Ack: ack, Err: err}
	}, nil
}

func (o *Orchestrator) finalize() {
	st := o.Stats()
	if o.store != nil {
		if err := o.store.EndActive(o.sess.ID, o.endedAt); err != nil {
			o.storeFailed(err)
		}
		h, err := o.store.AppendHistory(session.HistoryEntry{
			Session:    o.sess,
			Stats:      st,
			Transcript: o.Transcript(),
		})
		if err != nil {
			o.storeFailed(err)
		} else {
			o.historyID = h.ID
		}
	}
	o.log(log.LogEvent{Event: log.EventSessionEnded, Questions: st.QuestionsAsked, Average: st.AverageScore,
		DurationMs: st.Elapsed.Milliseconds()})
}

// ============================================================================
// Update
// ============================================================================

// Update applies one message and returns any follow-on command.
func (o *Orchestrator) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case QuestionMsg:
		return o.applyQuestion(msg)
	case FeedbackMsg:
		return o.applyFeedback(msg)
	case EndAckMsg:
		o.applyEndAck(msg)
	case TickMsg:
		return o.applyTick(msg)
	case ConnectivityMsg:
		return o.applyConnectivity(msg)
	}
	return nil
}

func (o *Orchestrator) applyQuestion(msg QuestionMsg) tea.Cmd {
	if o.state != AwaitingQuestion || msg.seq != o.seq {
		return nil
	}

	if msg.Err != nil {
		o.state = Idle
		if msg.Auto {
			o.notice = "Follow-up question unavailable: " + transport.UserMessage(msg.Err)
			o.logError(log.EventFollowupFailed, msg.Err)
			return nil
		}
		o.fail(msg.Err)
		return nil
	}

	o.appendEntry(session.Entry{Kind: session.KindQuestion, Content: msg.Question.Text, FollowUp: msg.FollowUp})
	o.active = len(o.transcript) - 1
	o.state = QuestionActive
	o.scores.RecordQuestion()
	o.persist()
	o.log(log.LogEvent{Event: log.EventQuestionReceived, Questions: o.scores.Stats(o.clk.Now()).QuestionsAsked})

	return o.armTimer()
}

func (o *Orchestrator) applyFeedback(msg FeedbackMsg) tea.Cmd {
	if o.state != Submitting || msg.seq != o.seq {
		return nil
	}

	if msg.Err != nil {
		// The question stays active; the user may resubmit unless time ran out.
		o.state = QuestionActive
		o.fail(msg.Err)
		return nil
	}

	fb := msg.Feedback
	o.timer.Disarm()
	o.active = -1

	entry := session.Entry{
		Kind:    session.KindFeedback,
		Content: fb.Content(),
		Verdict: fb.Verdict,
		Partial: fb.Partial,
	}
	// An unscored answer leaves the average alone.
	var normalized float64
	if fb.Score != nil {
		normalized = o.scores.RecordScore(*fb.Score)
		raw, norm := *fb.Score, normalized
		entry.Score, entry.Normalized = &raw, &norm
	}
	o.appendEntry(entry)
	o.state = Idle
	o.persist()

	st := o.scores.Stats(o.clk.Now())
	o.log(log.LogEvent{Event: log.EventFeedbackReceived, Score: entry.Normalized, Average: st.AverageScore,
		Questions: st.QuestionsAsked, Status: fb.Status})

	if fb.Score == nil || normalized >= o.threshold {
		return nil
	}
	if !o.online() {
		o.notice = "Follow-up skipped while offline."
		o.logError(log.EventFollowupFailed, transport.Offline(transport.OpFollowup))
		return nil
	}
	cmd, err := o.requestQuestion(true, true)
	if err != nil {
		o.logError(log.EventFollowupFailed, err)
		return nil
	}
	return cmd
}

func (o *Orchestrator) applyEndAck(msg EndAckMsg) {
	if o.state != Ended {
		return
	}
	if msg.Err != nil {
		o.lastErr = msg.Err
		o.logError(log.EventEndNotifyFailed, msg.Err)
		return
	}
	o.remote = msg.Ack.Summary
}

func (o *Orchestrator) applyTick(msg TickMsg) tea.Cmd {
	if o.state == Ended || msg.Gen != o.timer.Generation() {
		return nil
	}
	o.timer.Tick(msg.Gen)
	st := o.timer.State()
	if !st.Armed || st.Expired {
		return nil
	}
	return o.waitTick(msg.Gen)
}

func (o *Orchestrator) applyConnectivity(msg ConnectivityMsg) tea.Cmd {
	online := msg.Event == connectivity.BecameOnline
	if online {
		o.notice = "Back online."
	} else {
		o.notice = "You are offline. Requests are paused until the connection returns."
	}
	o.log(log.LogEvent{Event: log.EventConnectivityChanged, Online: &online})
	if o.state == Ended {
		return nil
	}
	return o.listenConnectivity()
}

// ============================================================================
// Timer and connectivity plumbing
// ============================================================================

func (o *Orchestrator) armTimer() tea.Cmd {
	tk := o.timer.Arm(o.sess.TimeLimit, o.sess.StressMode)
	if tk == nil {
		return nil
	}
	return waitTicker(tk)
}

func (o *Orchestrator) waitTick(gen uint64) tea.Cmd {
	tk := o.timer.Ticker()
	if tk == nil || tk.Gen != gen {
		return nil
	}
	return waitTicker(tk)
}

func waitTicker(tk *countdown.Ticker) tea.Cmd {
	return func() tea.Msg {
		if !tk.Wait() {
			return nil
		}
		return TickMsg{Gen: tk.Gen}
	}
}

func (o *Orchestrator) listenConnectivity() tea.Cmd {
	if o.monitor == nil {
		return nil
	}
	events, stop := o.monitor.Events(), o.stop
	return func() tea.Msg {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			return ConnectivityMsg{Event: ev}
		case <-stop:
			return nil
		}
	}
}

// timerEvents adapts countdown events to the event log.
type timerEvents struct{ o *Orchestrator }

func (timerEvents) Tick(int) {}

func (t timerEvents) Expired() {
	t.o.log(log.LogEvent{Event: log.EventTimerExpired})
}

// retireExpired drops an expired question so a follow-up can replace it.
func (o *Orchestrator) retireExpired() {
	o.timer.Disarm()
	o.active = -1
	o.state = Idle
}

// ============================================================================
// Accessors
// ============================================================================

// State returns the current lifecycle state.
func (o *Orchestrator) State() State { return o.state }

// Session returns the session record.
func (o *Orchestrator) Session() session.Session { return o.sess }

// Transcript returns a copy of the transcript.
func (o *Orchestrator) Transcript() []session.Entry {
	return append([]session.Entry(nil), o.transcript...)
}

// ActiveQuestion returns the active question, or nil.
func (o *Orchestrator) ActiveQuestion() *session.Entry {
	if o.active < 0 {
		return nil
	}
	q := o.transcript[o.active]
	return &q
}

// Timer returns the countdown state of the active question.
func (o *Orchestrator) Timer() countdown.State { return o.timer.State() }

// Stats returns the session statistics. Elapsed time stops at the end.
func (o *Orchestrator) Stats() score.Stats {
	now := o.clk.Now()
	if o.state == Ended {
		now = o.endedAt
	}
	return o.scores.Stats(now)
}

// Summary returns the transcript and stats for the summary view.
func (o *Orchestrator) Summary() Summary {
	return Summary{
		Session:    o.sess,
		Transcript: o.Transcript(),
		Stats:      o.Stats(),
		Remote:     o.remote,
		HistoryID:  o.historyID,
	}
}

// PendingFollowUp reports whether the in-flight question request is a follow-up.
func (o *Orchestrator) PendingFollowUp() bool {
	return o.state == AwaitingQuestion && o.followUp
}

// Online reports current connectivity. Without a monitor it is always true.
func (o *Orchestrator) Online() bool { return o.online() }

// LastError returns the error of the most recent failed operation, cleared
// when the next operation starts.
func (o *Orchestrator) LastError() error { return o.lastErr }

// Notice returns a non-blocking informational message, if any.
func (o *Orchestrator) Notice() string { return o.notice }

// ============================================================================
// Helpers
// ============================================================================

func (o *Orchestrator) online() bool {
	return o.monitor == nil || o.monitor.Online()
}

func (o *Orchestrator) appendEntry(e session.Entry) {
	now := o.clk.Now()
	e.Timestamp = now.UTC()
	e.ID = ulid.MustNew(ulid.Timestamp(now), o.entropy).String()
	o.transcript = append(o.transcript, e)
}

func (o *Orchestrator) persist() {
	if o.store == nil {
		return
	}
	err := o.store.SaveActive(session.Snapshot{
		Session:    o.sess,
		Transcript: o.Transcript(),
		Stats:      o.scores.Stats(o.clk.Now()),
	})
	if err != nil {
		o.storeFailed(err)
	}
}

func (o *Orchestrator) storeFailed(err error) {
	o.notice = "Could not save session progress: " + err.Error()
	o.log(log.LogEvent{Event: log.EventTransportError, Op: "store", Error: err.Error()})
}

func (o *Orchestrator) fail(err error) {
	o.lastErr = err
	o.logError(log.EventTransportError, err)
}

func (o *Orchestrator) clearMessages() {
	o.lastErr = nil
	o.notice = ""
}

func (o *Orchestrator) logError(event string, err error) {
	ev := log.LogEvent{Event: event, Error: err.Error()}
	var te *transport.Error
	if errors.As(err, &te) {
		ev.Op, ev.Kind, ev.Status = te.Op, string(te.Kind), te.Status
	}
	o.log(ev)
}

func (o *Orchestrator) log(ev log.LogEvent) {
	if o.logger == nil {
		return
	}
	ev.SessionID = o.sess.ID
	_ = o.logger.Append(ev)
}
