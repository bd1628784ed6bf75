package room

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/studyden/quiz-battle-backend/internal/protocol"
	"github.com/studyden/quiz-battle-backend/internal/provider"
	"github.com/studyden/quiz-battle-backend/internal/quiz"
)

var ErrNotJoinable = errors.New("room is not accepting players")
var ErrAlreadyJoined = errors.New("session already in room")
var ErrNotAuthorized = errors.New("only the owner may start the game")
var ErrNotEnoughPlayers = errors.New("not enough players to start")
var ErrAlreadyStarted = errors.New("game already started")
var ErrInvalidTransition = errors.New("action not valid in current game state")
var ErrDuplicateSubmission = errors.New("already answered this question")
var ErrUnknownSession = errors.New("session is not in this room")
var ErrRoomClosed = errors.New("room is closed")

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusGenerating Status = "generating"
	StatusPlaying    Status = "playing"
	StatusFinished   Status = "finished"
)

// PhaseGeneratingQuestions is the value carried by game_status events while
// the provider call is in flight.
const PhaseGeneratingQuestions = "generating_questions"

type Msg interface{ isRoomMsg() }

type Join struct {
	SessionID   string
	DisplayName string
	Outbox      chan protocol.ServerMessage
	Reply       chan error
}

func (Join) isRoomMsg() {}

type Leave struct{ SessionID string }

func (Leave) isRoomMsg() {}

type Start struct {
	SessionID string
	Reply     chan error
}

func (Start) isRoomMsg() {}

type SubmitAnswer struct {
	SessionID        string
	Answer           string
	TimeRemainingSec int
	Reply            chan error
}

func (SubmitAnswer) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// Internal messages: the provider goroutine and the question timer feed
// their results back through the inbox so every state change happens on the
// room's own goroutine.

type questionsReady struct{ questions []quiz.Question }

func (questionsReady) isRoomMsg() {}

type questionsFailed struct{ err error }

func (questionsFailed) isRoomMsg() {}

type questionTimeout struct{ index int }

func (questionTimeout) isRoomMsg() {}

// View is a race-free snapshot for tests and the read-only HTTP endpoint.
type View struct {
	Code            string
	Status          Status
	Players         []protocol.PlayerView
	NumQuestions    int
	CurrentQuestion int
	CreatedAt       time.Time
}

type Config struct {
	MinPlayers      int
	QuestionCount   int
	QuestionTimeSec int
	GenerateTimeout time.Duration
}

type player struct {
	displayName string
	score       int
	answered    bool
	outbox      chan protocol.ServerMessage
}

// Room is one quiz session run as a single goroutine. Every mutation —
// join, start, answer, timeout, disconnect — goes through the inbox, so two
// concurrent submissions can never double-credit a player or tear the
// roster. Different rooms share nothing.
type Room struct {
	code      string
	ownerID   string
	source    string
	status    Status
	players   map[string]*player
	order     []string // join order, also the ranking tiebreak
	questions []quiz.Question
	current   int
	createdAt time.Time

	cfg      Config
	inbox    chan Msg
	timer    *time.Timer
	provider provider.QuestionSetProvider
	onEmpty  func(*Room)
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a room in Waiting with the owner as sole player and starts its
// loop. onEmpty fires exactly once, after the last player has left and the
// loop has stopped.
func New(parent context.Context, code, source string, owner Join, cfg Config, qp provider.QuestionSetProvider, onEmpty func(*Room), log *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)

	r := &Room{
		code:      code,
		ownerID:   owner.SessionID,
		source:    source,
		status:    StatusWaiting,
		players:   make(map[string]*player),
		createdAt: time.Now(),
		cfg:       cfg,
		inbox:     make(chan Msg, 64),
		provider:  qp,
		onEmpty:   onEmpty,
		log:       log.With(zap.String("room", code)),
		ctx:       ctx,
		cancel:    cancel,
	}
	r.addPlayer(owner.SessionID, owner.DisplayName, owner.Outbox)

	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) Code() string { return r.code }

// Done is closed once the room's loop has exited. Senders racing against
// room teardown select on it so they never block on an inbox nobody drains.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

// Call delivers m to the room and waits for its reply. A lookup can hand out
// a room just before its last player leaves; without this guard the caller
// would park forever on a dead inbox. If the loop has already exited, or
// exits before answering, Call fails with ErrRoomClosed.
func Call(ctx context.Context, r *Room, m Msg, reply <-chan error) error {
	select {
	case r.inbox <- m:
	case <-r.ctx.Done():
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-r.ctx.Done():
		// The loop may have answered right before exiting.
		select {
		case err := <-reply:
			return err
		default:
			return ErrRoomClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- r.handleJoin(msg)

			case Leave:
				r.handleLeave(msg.SessionID)

			case Start:
				msg.Reply <- r.handleStart(msg.SessionID)

			case SubmitAnswer:
				msg.Reply <- r.handleSubmit(msg)

			case questionsReady:
				r.handleQuestionsReady(msg.questions)

			case questionsFailed:
				r.handleQuestionsFailed(msg.err)

			case questionTimeout:
				// Stale fires from already-advanced questions are dropped.
				if r.status == StatusPlaying && msg.index == r.current {
					r.log.Debug("question timed out", zap.Int("question", msg.index))
					r.advance()
				}

			case GetState:
				msg.Reply <- View{
					Code:            r.code,
					Status:          r.status,
					Players:         r.roster(),
					NumQuestions:    len(r.questions),
					CurrentQuestion: r.current,
					CreatedAt:       r.createdAt,
				}

			case Shutdown:
				r.shutdown()
				return
			}

			// A room with nobody in it is dead, whatever its status.
			if len(r.players) == 0 {
				r.shutdown()
				if r.onEmpty != nil {
					r.onEmpty(r)
				}
				return
			}
		}
	}
}

func (r *Room) handleJoin(msg Join) error {
	if r.status != StatusWaiting {
		return ErrNotJoinable
	}
	if _, ok := r.players[msg.SessionID]; ok {
		return ErrAlreadyJoined
	}
	r.addPlayer(msg.SessionID, msg.DisplayName, msg.Outbox)
	r.log.Info("player joined",
		zap.String("name", msg.DisplayName),
		zap.Int("players", len(r.players)))
	r.broadcast(protocol.UpdatePlayers(r.roster()))
	return nil
}

func (r *Room) handleLeave(sessionID string) {
	p, ok := r.players[sessionID]
	if !ok {
		return
	}
	close(p.outbox)
	r.removePlayer(sessionID)
	if len(r.players) == 0 {
		return // loop tears the room down
	}
	r.log.Info("player left", zap.String("name", p.displayName), zap.Int("players", len(r.players)))
	r.broadcast(protocol.UpdatePlayers(r.roster()))
	// The departed player may have been the last holdout on this question.
	if r.status == StatusPlaying && r.allAnswered() {
		r.advance()
	}
}

func (r *Room) handleStart(sessionID string) error {
	if sessionID != r.ownerID {
		return ErrNotAuthorized
	}
	if r.status != StatusWaiting {
		return ErrAlreadyStarted
	}
	if len(r.players) < r.cfg.MinPlayers {
		return ErrNotEnoughPlayers
	}

	r.status = StatusGenerating
	r.broadcast(protocol.GameStatus(PhaseGeneratingQuestions))
	r.log.Info("generating questions", zap.Int("count", r.cfg.QuestionCount))
	go r.generate()
	return nil
}

// generate runs off-loop; only the inbox send touches the room.
func (r *Room) generate() {
	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.GenerateTimeout)
	defer cancel()

	questions, err := r.provider.GenerateQuestions(ctx, r.source, r.cfg.QuestionCount)
	if err != nil {
		r.post(questionsFailed{err: err})
		return
	}
	r.post(questionsReady{questions: questions})
}

// post delivers an internal message unless the room is already gone.
func (r *Room) post(m Msg) {
	select {
	case r.inbox <- m:
	case <-r.ctx.Done():
	}
}

func (r *Room) handleQuestionsReady(questions []quiz.Question) {
	if r.status != StatusGenerating {
		return
	}
	if err := quiz.ValidateSet(questions); err != nil {
		r.handleQuestionsFailed(err)
		return
	}
	r.questions = questions
	r.status = StatusPlaying
	r.current = 0
	r.resetAnswers()
	r.log.Info("game started", zap.Int("questions", len(questions)))
	r.broadcast(protocol.GameStarted(questionViews(questions)))
	r.armTimer()
}

func (r *Room) handleQuestionsFailed(err error) {
	if r.status != StatusGenerating {
		return
	}
	// Roll back atomically: no question list, back to Waiting, owner may
	// retry. Everyone in the room learns why the game did not start.
	r.status = StatusWaiting
	r.log.Warn("question generation failed", zap.Error(err))
	r.broadcast(protocol.Error("question generation failed, try starting again"))
}

func (r *Room) handleSubmit(msg SubmitAnswer) error {
	if r.status != StatusPlaying {
		return ErrInvalidTransition
	}
	p, ok := r.players[msg.SessionID]
	if !ok {
		return ErrUnknownSession
	}
	if p.answered {
		return ErrDuplicateSubmission
	}

	p.answered = true
	p.score += quiz.Score(r.questions[r.current], msg.Answer, msg.TimeRemainingSec, r.cfg.QuestionTimeSec)
	r.broadcast(protocol.UpdateScores(r.roster()))

	if r.allAnswered() {
		r.advance()
	}
	return nil
}

func (r *Room) advance() {
	r.stopTimer()
	r.current++
	if r.current >= len(r.questions) {
		r.finish()
		return
	}
	r.resetAnswers()
	r.armTimer()
}

// finish runs exactly once per room: advance is unreachable after the
// status flips to Finished.
func (r *Room) finish() {
	r.status = StatusFinished
	board := r.leaderboard()
	r.log.Info("game finished", zap.Int("players", len(board)))
	r.broadcast(protocol.GameFinished(board))
}

func (r *Room) armTimer() {
	if r.cfg.QuestionTimeSec <= 0 {
		return
	}
	index := r.current
	r.timer = time.AfterFunc(time.Duration(r.cfg.QuestionTimeSec)*time.Second, func() {
		r.post(questionTimeout{index: index})
	})
}

func (r *Room) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Room) addPlayer(sessionID, displayName string, outbox chan protocol.ServerMessage) {
	r.players[sessionID] = &player{
		displayName: displayName,
		outbox:      outbox,
	}
	r.order = append(r.order, sessionID)
}

func (r *Room) removePlayer(sessionID string) {
	delete(r.players, sessionID)
	for i, id := range r.order {
		if id == sessionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Room) resetAnswers() {
	for _, p := range r.players {
		p.answered = false
	}
}

func (r *Room) allAnswered() bool {
	for _, p := range r.players {
		if !p.answered {
			return false
		}
	}
	return true
}

// roster lists players in join order, names and scores only.
func (r *Room) roster() []protocol.PlayerView {
	views := make([]protocol.PlayerView, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.players[id]; ok {
			views = append(views, protocol.PlayerView{DisplayName: p.displayName, Score: p.score})
		}
	}
	return views
}

// leaderboard ranks by score descending; the stable sort keeps join order
// as the tiebreak since roster() already emits in join order.
func (r *Room) leaderboard() []protocol.PlayerView {
	board := r.roster()
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].Score > board[j].Score
	})
	return board
}

func (r *Room) broadcast(msg protocol.ServerMessage) {
	for id, p := range r.players {
		select {
		case p.outbox <- msg:
		default:
			// Client is slow/full - treat it like a disconnect.
			close(p.outbox)
			r.removePlayer(id)
		}
	}
}

func (r *Room) shutdown() {
	r.stopTimer()
	for id, p := range r.players {
		close(p.outbox)
		delete(r.players, id)
	}
	r.cancel()
}

func questionViews(questions []quiz.Question) []protocol.QuestionView {
	views := make([]protocol.QuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, protocol.QuestionView{Text: q.Text, Options: q.Options})
	}
	return views
}
