// Package registry owns the process-wide table of live rooms. It runs as a
// single goroutine, so code allocation, lookup and removal are serialized
// and a code can never name two live rooms at once.
package registry

import (
	"context"
	"crypto/rand"
	"math/big"

	"go.uber.org/zap"

	"github.com/studyden/quiz-battle-backend/internal/protocol"
	"github.com/studyden/quiz-battle-backend/internal/provider"
	"github.com/studyden/quiz-battle-backend/internal/room"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 4

type Msg interface{ isRegistryMsg() }

type CreateRoom struct {
	OwnerSessionID   string
	OwnerDisplayName string
	QuestionSource   string
	Outbox           chan protocol.ServerMessage
	Reply            chan CreateResult
}

func (CreateRoom) isRegistryMsg() {}

type CreateResult struct {
	Code string
	Room *room.Room
	Err  error
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

func (GetRoom) isRegistryMsg() {}

// removeRoom carries the room pointer so a stale notification can never
// evict a newer room that reused the code.
type removeRoom struct {
	code string
	room *room.Room
}

func (removeRoom) isRegistryMsg() {}

type Shutdown struct{}

func (Shutdown) isRegistryMsg() {}

type Registry struct {
	inbox    chan Msg
	rooms    map[string]*room.Room
	roomCfg  room.Config
	provider provider.QuestionSetProvider
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(parent context.Context, roomCfg room.Config, qp provider.QuestionSetProvider, log *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	reg := &Registry{
		inbox:    make(chan Msg, 64),
		rooms:    make(map[string]*room.Room),
		roomCfg:  roomCfg,
		provider: qp,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go reg.loop()
	return reg
}

func (reg *Registry) Inbox() chan<- Msg { return reg.inbox }

func (reg *Registry) loop() {
	for {
		select {
		case <-reg.ctx.Done():
			reg.shutdown()
			return

		case m := <-reg.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- reg.create(msg)

			case GetRoom:
				msg.Reply <- reg.rooms[msg.Code] // may be nil

			case removeRoom:
				if reg.rooms[msg.code] == msg.room {
					delete(reg.rooms, msg.code)
					reg.log.Info("room removed", zap.String("room", msg.code))
				}

			case Shutdown:
				reg.shutdown()
				return
			}
		}
	}
}

func (reg *Registry) create(msg CreateRoom) CreateResult {
	code, err := reg.allocateCode()
	if err != nil {
		return CreateResult{Err: err}
	}

	owner := room.Join{
		SessionID:   msg.OwnerSessionID,
		DisplayName: msg.OwnerDisplayName,
		Outbox:      msg.Outbox,
	}
	rm := room.New(reg.ctx, code, msg.QuestionSource, owner, reg.roomCfg, reg.provider,
		func(r *room.Room) {
			select {
			case reg.inbox <- removeRoom{code: code, room: r}:
			case <-reg.ctx.Done():
			}
		}, reg.log)
	reg.rooms[code] = rm
	reg.log.Info("room created", zap.String("room", code), zap.String("owner", msg.OwnerDisplayName))
	return CreateResult{Code: code, Room: rm}
}

// allocateCode draws short codes until one misses the live table. Four
// characters over a 36-symbol alphabet leaves collisions rare at the room
// counts a single process serves.
func (reg *Registry) allocateCode() (string, error) {
	for {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		if _, taken := reg.rooms[code]; !taken {
			return code, nil
		}
		reg.log.Debug("room code collision, regenerating", zap.String("room", code))
	}
}

func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}

func (reg *Registry) shutdown() {
	for _, rm := range reg.rooms {
		rm.Inbox() <- room.Shutdown{}
	}
	clear(reg.rooms)
	reg.cancel()
}
