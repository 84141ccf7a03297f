package room

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/park285/cheese-xiangqi/internal/domain"
	"github.com/park285/cheese-xiangqi/internal/engine"
	"github.com/park285/cheese-xiangqi/internal/xiangqi"
	"go.uber.org/zap"
)

const (
	defaultAbandonTimeout = 60 * time.Second
	defaultTickInterval   = time.Second
	defaultBotRetry       = 2 * time.Second
	maxBotFailures        = 3
	inboxSize             = 64
)

// Config describes one room. Zero durations get defaults.
type Config struct {
	ID                 string
	Name               string
	TimeControlSeconds int // 0 = untimed
	Private            bool
	Rules              xiangqi.Rules
	AbandonTimeout     time.Duration
	TickInterval       time.Duration

	// Bot plays the black seat when BotDifficulty is set.
	Bot           MoveChooser
	BotDifficulty engine.Difficulty
	// BotDelay returns the simulated think time. Defaults to engine.ResponseDelay.
	BotDelay func(engine.DifficultyPreset) time.Duration
	// BotRetry is the pause before a failed bot search is retried.
	BotRetry time.Duration

	// AwaitHost seats the host as CONNECTING under the abandonment timer,
	// for hosts that attach later over a socket.
	AwaitHost bool

	Broadcaster Broadcaster
	// OnFinish runs once on the room goroutine when the game ends with a result.
	OnFinish func(report domain.GameReport, snap Snapshot)
	// OnClose runs once when the room goroutine stops.
	OnClose func(id string)

	Now    func() time.Time
	Logger *zap.Logger
}

type seat struct {
	player domain.Player
	conn   ConnState
	bot    engine.Difficulty
	gen    uint64
	timer  *time.Timer
}

type command struct {
	fn    func() error
	reply chan result
}

type result struct {
	snap Snapshot
	err  error
}

// Room owns one match. A single goroutine applies every action in receipt
// order; the fields below published are only touched by that goroutine.
type Room struct {
	id       string
	cfg      Config
	logger   *zap.Logger
	inbox    chan command
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	published atomic.Pointer[Snapshot]

	status      Status
	red, black  *seat
	board       xiangqi.Board
	turn        xiangqi.Color
	moves       []MoveRecord
	redMillis   int64
	blackMillis int64
	clockMark   time.Time // last instant charged to the side to move
	turnStart   time.Time
	drawBy      xiangqi.Color
	outcome     *Outcome
	reported    bool
	closed      bool
	createdAt   time.Time
	startedAt   time.Time
	lastMoveAt  time.Time
	botPly      int
	botFailures int
	rng         *rand.Rand
}

// New opens a room with host in the red seat. With a bot configured the
// game starts at once; otherwise the room waits for a second player.
func New(cfg Config, host domain.Player) (*Room, error) {
	r, err := newRoom(cfg, host)
	if err != nil {
		return nil, err
	}
	if cfg.AwaitHost {
		r.awaitSeat(xiangqi.Red, r.red)
	} else {
		r.red.conn = ConnConnected
	}
	if cfg.BotDifficulty != "" {
		if cfg.Bot == nil {
			r.stopTimers()
			return nil, fmt.Errorf("%w: bot difficulty without engine", ErrInvalidArgs)
		}
		preset, err := cfg.Bot.Preset(cfg.BotDifficulty)
		if err != nil {
			r.stopTimers()
			return nil, err
		}
		r.black = &seat{player: botPlayer(cfg.BotDifficulty, preset), conn: ConnConnected, bot: cfg.BotDifficulty}
		r.start()
	}
	r.launch()
	return r, nil
}

// NewPaired opens a room for two matched players. Both seats start as
// CONNECTING until their players attach.
func NewPaired(cfg Config, red, black domain.Player) (*Room, error) {
	if strings.TrimSpace(black.ID) == "" || black.ID == red.ID {
		return nil, ErrInvalidArgs
	}
	cfg.BotDifficulty = ""
	r, err := newRoom(cfg, red)
	if err != nil {
		return nil, err
	}
	r.black = &seat{player: black}
	r.awaitSeat(xiangqi.Red, r.red)
	r.awaitSeat(xiangqi.Black, r.black)
	r.start()
	r.launch()
	return r, nil
}

func newRoom(cfg Config, host domain.Player) (*Room, error) {
	if strings.TrimSpace(cfg.ID) == "" || strings.TrimSpace(host.ID) == "" || cfg.TimeControlSeconds < 0 {
		return nil, ErrInvalidArgs
	}
	if cfg.AbandonTimeout <= 0 {
		cfg.AbandonTimeout = defaultAbandonTimeout
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.BotRetry <= 0 {
		cfg.BotRetry = defaultBotRetry
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Broadcaster == nil {
		cfg.Broadcaster = nopBroadcaster{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	ms := int64(cfg.TimeControlSeconds) * 1000
	r := &Room{
		id:          cfg.ID,
		cfg:         cfg,
		logger:      cfg.Logger.With(zap.String("room_id", cfg.ID)),
		inbox:       make(chan command, inboxSize),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		status:      StatusWaiting,
		red:         &seat{player: host},
		board:       xiangqi.Initial(),
		turn:        xiangqi.Red,
		redMillis:   ms,
		blackMillis: ms,
		createdAt:   cfg.Now(),
		botPly:      -1,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	return r, nil
}

func (r *Room) launch() {
	r.publish()
	r.logger.Info("room_open",
		zap.String("name", r.cfg.Name),
		zap.String("red_id", r.red.player.ID),
		zap.Int("time_control", r.cfg.TimeControlSeconds),
		zap.Bool("private", r.cfg.Private),
		zap.String("bot", string(r.cfg.BotDifficulty)),
	)
	go r.run()
}

func (r *Room) ID() string { return r.id }

// Done is closed when the room goroutine has stopped.
func (r *Room) Done() <-chan struct{} { return r.done }

// Snapshot returns the state as of the last applied action.
func (r *Room) Snapshot() Snapshot { return *r.published.Load() }

// Watch is the read-only entry point for spectators.
func (r *Room) Watch() Snapshot { return r.Snapshot() }

func (r *Room) run() {
	defer r.stop()
	var tickC <-chan time.Time
	if r.cfg.TimeControlSeconds > 0 {
		t := time.NewTicker(r.cfg.TickInterval)
		defer t.Stop()
		tickC = t.C
	}
	for {
		select {
		case cmd := <-r.inbox:
			if !r.exec(cmd) || r.closed {
				return
			}
		case <-tickC:
			if !r.exec(command{fn: r.tick}) || r.closed {
				return
			}
		}
	}
}

// exec applies one command. A panic aborts this room only.
func (r *Room) exec(cmd command) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("room_panic", zap.Any("panic", rec), zap.Stack("stack"))
			r.status = StatusFinished
			r.closed = true
			r.stopTimers()
			r.publish()
			if cmd.reply != nil {
				cmd.reply <- result{snap: r.Snapshot(), err: ErrRoomAborted}
			}
			ok = false
		}
	}()
	err := cmd.fn()
	r.publish()
	if cmd.reply != nil {
		cmd.reply <- result{snap: r.Snapshot(), err: err}
	}
	return true
}

func (r *Room) stop() {
	r.stopOnce.Do(func() {
		r.stopTimers()
		r.cancel()
		close(r.done)
		r.logger.Debug("room_stopped", zap.String("status", string(r.status)))
		if r.cfg.OnClose != nil {
			r.cfg.OnClose(r.id)
		}
	})
}

// do runs fn on the room goroutine and waits for its result.
func (r *Room) do(fn func() error) (Snapshot, error) {
	cmd := command{fn: fn, reply: make(chan result, 1)}
	select {
	case r.inbox <- cmd:
	case <-r.done:
		return r.Snapshot(), ErrRoomClosed
	}
	select {
	case res := <-cmd.reply:
		return res.snap, res.err
	case <-r.done:
		select {
		case res := <-cmd.reply:
			return res.snap, res.err
		default:
			return r.Snapshot(), ErrRoomClosed
		}
	}
}

// post queues fn without waiting. Used by timers and the bot.
func (r *Room) post(fn func() error) {
	select {
	case r.inbox <- command{fn: fn}:
	case <-r.done:
	}
}

// Close stops the room without a result and waits for its goroutine.
// It must not be called from OnFinish or OnClose.
func (r *Room) Close() {
	_, _ = r.do(func() error {
		r.closed = true
		return nil
	})
	<-r.done
}

// Join seats player as black, or reattaches a player who already holds a seat.
func (r *Room) Join(player domain.Player) (Snapshot, error) {
	if strings.TrimSpace(player.ID) == "" {
		return Snapshot{}, ErrInvalidArgs
	}
	return r.do(func() error {
		if _, s := r.seatOf(player.ID); s != nil {
			r.reconnect(s)
			return nil
		}
		if r.status == StatusFinished {
			return ErrGameOver
		}
		if r.black != nil {
			return fmt.Errorf("%w: %s", ErrRoomFull, r.id)
		}
		r.black = &seat{player: player, conn: ConnConnected}
		r.start()
		return nil
	})
}

// ApplyMove validates and applies a move for the seat held by playerID.
func (r *Room) ApplyMove(playerID string, from, to xiangqi.Position) (Snapshot, error) {
	return r.do(func() error {
		if err := r.requirePlaying(); err != nil {
			return err
		}
		c, s := r.seatOf(playerID)
		if s == nil {
			return ErrNotAPlayer
		}
		if c != r.turn {
			return ErrNotYourTurn
		}
		now := r.cfg.Now()
		if r.charge(now) {
			return fmt.Errorf("%w: %s ran out of time", ErrGameOver, c)
		}
		m, err := r.cfg.Rules.Validate(r.board, c, from, to)
		if err != nil {
			return err
		}
		r.commit(c, m, now)
		return nil
	})
}

// Tick charges elapsed time to the side to move and ends the game on flag fall.
func (r *Room) Tick() (Snapshot, error) { return r.do(r.tick) }

func (r *Room) Resign(playerID string) (Snapshot, error) {
	return r.do(func() error {
		if err := r.requirePlaying(); err != nil {
			return err
		}
		c, s := r.seatOf(playerID)
		if s == nil {
			return ErrNotAPlayer
		}
		r.finish(c.Opponent(), domain.ReasonResignation)
		return nil
	})
}

func (r *Room) OfferDraw(playerID string) (Snapshot, error) {
	return r.do(func() error {
		if err := r.requirePlaying(); err != nil {
			return err
		}
		c, s := r.seatOf(playerID)
		if s == nil {
			return ErrNotAPlayer
		}
		if r.drawBy != xiangqi.NoColor {
			return ErrDrawPending
		}
		if r.seat(c.Opponent()).bot != "" {
			// bots never accept
			r.emit(Event{Kind: EventDrawDeclined, Color: c.Opponent().String(), PlayerID: r.seat(c.Opponent()).player.ID})
			return nil
		}
		r.drawBy = c
		r.logger.Info("room_draw_offer", zap.String("player_id", playerID))
		r.emit(Event{Kind: EventDrawOffered, Color: c.String(), PlayerID: playerID})
		return nil
	})
}

// RespondDraw answers the opponent's pending offer.
func (r *Room) RespondDraw(playerID string, accept bool) (Snapshot, error) {
	return r.do(func() error {
		if err := r.requirePlaying(); err != nil {
			return err
		}
		c, s := r.seatOf(playerID)
		if s == nil {
			return ErrNotAPlayer
		}
		if r.drawBy == xiangqi.NoColor || r.drawBy == c {
			return ErrDrawNotPending
		}
		if accept {
			r.finish(xiangqi.NoColor, domain.ReasonDrawAgreement)
			return nil
		}
		r.drawBy = xiangqi.NoColor
		r.emit(Event{Kind: EventDrawDeclined, Color: c.String(), PlayerID: playerID})
		return nil
	})
}

// Disconnect marks the seat as waiting for its player and starts the
// abandonment timer. The game keeps running.
func (r *Room) Disconnect(playerID string) (Snapshot, error) {
	return r.do(func() error {
		c, s := r.seatOf(playerID)
		if s == nil {
			return ErrNotAPlayer
		}
		r.disconnect(c, s)
		return nil
	})
}

// Reconnect reattaches a player by id and cancels a running abandonment timer.
func (r *Room) Reconnect(playerID string) (Snapshot, error) {
	return r.do(func() error {
		_, s := r.seatOf(playerID)
		if s == nil {
			return ErrNotAPlayer
		}
		r.reconnect(s)
		return nil
	})
}

// Abandon is an explicit forfeit. In a waiting room it closes the room.
func (r *Room) Abandon(playerID string) (Snapshot, error) {
	return r.do(func() error {
		c, s := r.seatOf(playerID)
		if s == nil {
			return ErrNotAPlayer
		}
		switch r.status {
		case StatusWaiting:
			r.closeRoom("host_abandoned")
		case StatusPlaying:
			r.finish(c.Opponent(), domain.ReasonAbandonment)
		default:
			return ErrGameOver
		}
		return nil
	})
}

// Leave is a soft exit: the waiting host closes the room, a seated player
// in a running game is treated as disconnected, anyone else is ignored.
func (r *Room) Leave(playerID string) (Snapshot, error) {
	return r.do(func() error {
		c, s := r.seatOf(playerID)
		if s == nil {
			return nil
		}
		switch r.status {
		case StatusWaiting:
			r.closeRoom("host_left")
		case StatusPlaying:
			r.disconnect(c, s)
		}
		return nil
	})
}

func (r *Room) start() {
	now := r.cfg.Now()
	r.status = StatusPlaying
	r.startedAt = now
	r.clockMark = now
	r.turnStart = now
	r.logger.Info("room_start",
		zap.String("red_id", r.red.player.ID),
		zap.String("black_id", r.black.player.ID),
	)
	r.emit(Event{Kind: EventRoomState})
	r.maybeBot()
}

func (r *Room) tick() error {
	r.charge(r.cfg.Now())
	return nil
}

// charge bills the side to move for time since clockMark. It reports true
// when that side's clock ran out and the game ended.
func (r *Room) charge(now time.Time) bool {
	if r.status != StatusPlaying || r.cfg.TimeControlSeconds == 0 {
		return false
	}
	elapsed := now.Sub(r.clockMark).Milliseconds()
	if elapsed <= 0 {
		return false
	}
	r.clockMark = r.clockMark.Add(time.Duration(elapsed) * time.Millisecond)
	left := &r.redMillis
	if r.turn == xiangqi.Black {
		left = &r.blackMillis
	}
	*left -= elapsed
	if *left > 0 {
		return false
	}
	*left = 0
	r.finish(r.turn.Opponent(), domain.ReasonTimeout)
	return true
}

func (r *Room) commit(c xiangqi.Color, m xiangqi.Move, now time.Time) {
	r.board = r.board.ApplyMove(m)
	rec := MoveRecord{
		Ply:         len(r.moves) + 1,
		Color:       c.String(),
		FromRow:     m.From.Row,
		FromCol:     m.From.Col,
		ToRow:       m.To.Row,
		ToCol:       m.To.Col,
		Piece:       m.Piece.Type.String(),
		ICCS:        m.ICCS(),
		SpentMillis: now.Sub(r.turnStart).Milliseconds(),
		At:          now,
	}
	if m.IsCapture() {
		rec.Captured = m.Captured.Type.String()
	}
	r.moves = append(r.moves, rec)
	r.turn = c.Opponent()
	r.turnStart = now
	r.lastMoveAt = now
	// any move declines a pending offer
	r.drawBy = xiangqi.NoColor

	r.logger.Debug("room_move", zap.Int("ply", rec.Ply), zap.String("move", m.String()))
	r.emit(Event{Kind: EventMoveApplied, Move: &rec, Color: rec.Color})

	if v := r.cfg.Rules.Adjudicate(r.board, r.turn); v.Over() {
		r.finish(v.Winner, reasonFor(v.Status))
		return
	}
	r.maybeBot()
}

func (r *Room) disconnect(c xiangqi.Color, s *seat) {
	if s.bot != "" || s.conn == ConnReconnecting || s.conn == ConnDisconnected {
		return
	}
	if r.status == StatusFinished {
		s.conn = ConnDisconnected
		r.emitConn(c, s)
		return
	}
	s.conn = ConnReconnecting
	r.armAbandon(c, s)
	r.logger.Info("room_disconnect", zap.String("player_id", s.player.ID), zap.Duration("timeout", r.cfg.AbandonTimeout))
	r.emitConn(c, s)
}

// awaitSeat marks a seat whose player has not attached yet. The seat is
// abandoned if nobody attaches within the abandonment timeout.
func (r *Room) awaitSeat(c xiangqi.Color, s *seat) {
	s.conn = ConnConnecting
	r.armAbandon(c, s)
}

func (r *Room) armAbandon(c xiangqi.Color, s *seat) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(r.cfg.AbandonTimeout, func() {
		r.post(func() error {
			r.abandonExpired(c, gen)
			return nil
		})
	})
}

func (r *Room) reconnect(s *seat) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	if s.conn == ConnConnected {
		return
	}
	s.conn = ConnConnected
	c, _ := r.seatOf(s.player.ID)
	r.logger.Info("room_reconnect", zap.String("player_id", s.player.ID))
	r.emitConn(c, s)
}

func (r *Room) abandonExpired(c xiangqi.Color, gen uint64) {
	s := r.seat(c)
	if s == nil || s.gen != gen || (s.conn != ConnReconnecting && s.conn != ConnConnecting) {
		return
	}
	s.conn = ConnDisconnected
	s.timer = nil
	r.emitConn(c, s)
	switch r.status {
	case StatusWaiting:
		r.closeRoom("host_timeout")
	case StatusPlaying:
		r.finish(c.Opponent(), domain.ReasonAbandonment)
	}
}

// closeRoom ends a room that never produced a result.
func (r *Room) closeRoom(why string) {
	r.status = StatusFinished
	r.closed = true
	r.stopTimers()
	r.logger.Info("room_close", zap.String("why", why))
	r.emit(Event{Kind: EventRoomState})
}

func (r *Room) finish(winner xiangqi.Color, reason domain.Reason) {
	if r.status == StatusFinished {
		return
	}
	now := r.cfg.Now()
	r.status = StatusFinished
	r.drawBy = xiangqi.NoColor
	out := &Outcome{Result: resultFor(winner), Reason: reason}
	if winner != xiangqi.NoColor {
		out.Winner = winner.String()
	}
	r.outcome = out
	r.stopTimers()

	r.logger.Info("room_finish",
		zap.String("result", string(out.Result)),
		zap.String("reason", string(reason)),
		zap.Int("plies", len(r.moves)),
	)
	r.emit(Event{Kind: EventGameOver})
	if r.cfg.OnFinish != nil && !r.reported {
		r.reported = true
		r.cfg.OnFinish(r.report(now), r.snapshot())
	}
}

func (r *Room) report(now time.Time) domain.GameReport {
	rep := domain.GameReport{
		RoomID:             r.id,
		Result:             r.outcome.Result,
		Reason:             r.outcome.Reason,
		Red:                r.red.player,
		TimeControlSeconds: r.cfg.TimeControlSeconds,
		Plies:              len(r.moves),
		StartedAt:          r.startedAt,
		EndedAt:            now,
	}
	if r.black != nil {
		rep.Black = r.black.player
		rep.BotDifficulty = string(r.black.bot)
	}
	return rep
}

func (r *Room) stopTimers() {
	for _, s := range []*seat{r.red, r.black} {
		if s != nil && s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
	}
}

func (r *Room) requirePlaying() error {
	switch r.status {
	case StatusWaiting:
		return ErrGameNotStarted
	case StatusFinished:
		return ErrGameOver
	}
	return nil
}

func (r *Room) seat(c xiangqi.Color) *seat {
	if c == xiangqi.Black {
		return r.black
	}
	return r.red
}

func (r *Room) seatOf(playerID string) (xiangqi.Color, *seat) {
	switch {
	case r.red != nil && r.red.player.ID == playerID:
		return xiangqi.Red, r.red
	case r.black != nil && r.black.player.ID == playerID:
		return xiangqi.Black, r.black
	}
	return xiangqi.NoColor, nil
}

func (r *Room) emit(ev Event) {
	ev.RoomID = r.id
	ev.Snapshot = r.snapshot()
	r.cfg.Broadcaster.Broadcast(ev)
}

func (r *Room) emitConn(c xiangqi.Color, s *seat) {
	r.emit(Event{Kind: EventConnectionState, Color: c.String(), PlayerID: s.player.ID, Connection: s.conn})
}

func (r *Room) publish() {
	snap := r.snapshot()
	r.published.Store(&snap)
}

func (r *Room) snapshot() Snapshot {
	s := Snapshot{
		ID:                 r.id,
		Name:               r.cfg.Name,
		Status:             r.status,
		Private:            r.cfg.Private,
		TimeControlSeconds: r.cfg.TimeControlSeconds,
		Red:                seatView(xiangqi.Red, r.red),
		Black:              seatView(xiangqi.Black, r.black),
		Turn:               r.turn.String(),
		RedTimeMillis:      r.redMillis,
		BlackTimeMillis:    r.blackMillis,
		FEN:                r.board.FEN(),
		Moves:              append([]MoveRecord(nil), r.moves...),
		CreatedAt:          r.createdAt,
		StartedAt:          r.startedAt,
		LastMoveAt:         r.lastMoveAt,
	}
	if r.status == StatusPlaying {
		s.InCheck = r.cfg.Rules.InCheck(r.board, r.turn)
	}
	if r.drawBy != xiangqi.NoColor {
		s.DrawOfferedBy = r.drawBy.String()
	}
	if r.outcome != nil {
		o := *r.outcome
		s.Outcome = &o
	}
	return s
}

func seatView(c xiangqi.Color, s *seat) *SeatView {
	if s == nil {
		return nil
	}
	return &SeatView{Player: s.player, Color: c.String(), Connection: s.conn, BotDifficulty: string(s.bot)}
}

func resultFor(winner xiangqi.Color) domain.Result {
	switch winner {
	case xiangqi.Red:
		return domain.ResultRedWins
	case xiangqi.Black:
		return domain.ResultBlackWins
	}
	return domain.ResultDraw
}

func reasonFor(st xiangqi.Status) domain.Reason {
	if st == xiangqi.Stalemate {
		return domain.ReasonStalemate
	}
	// a captured general only happens on a board that skipped legality
	return domain.ReasonCheckmate
}
