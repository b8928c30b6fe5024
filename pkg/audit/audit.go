// Package audit writes audit log entries off the request path. Entries are
// delivered to a single actor which persists them one at a time.
package audit

import (
	"context"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/foodorder/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

type Sink interface {
	CreateAuditLog(ctx context.Context, log *repository.AuditLog) error
}

// Entry is the message handled by the audit actor.
type Entry struct {
	Action   string
	EntityID string
	Data     map[string]interface{}
}

type auditActor struct {
	service string
	sink    Sink
	logger  *zap.Logger
}

func (a *auditActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *Entry:
		wctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		err := a.sink.CreateAuditLog(wctx, &repository.AuditLog{
			Service:  a.service,
			Action:   msg.Action,
			EntityID: msg.EntityID,
			Data:     bson.M(msg.Data),
		})
		if err != nil {
			a.logger.Warn("Failed to write audit log",
				zap.String("action", msg.Action),
				zap.String("entity_id", msg.EntityID),
				zap.Error(err))
		}

	case *actor.Started:
		a.logger.Info("Audit actor started")

	case *actor.Stopping:
		a.logger.Info("Audit actor stopping")
	}
}

type Recorder struct {
	system *actor.ActorSystem
	pid    *actor.PID
}

func NewRecorder(service string, sink Sink, logger *zap.Logger) *Recorder {
	system := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return &auditActor{service: service, sink: sink, logger: logger.Named("audit-actor")}
	})

	return &Recorder{
		system: system,
		pid:    system.Root.Spawn(props),
	}
}

// Record queues an entry and returns immediately.
func (r *Recorder) Record(action, entityID string, data map[string]interface{}) {
	r.system.Root.Send(r.pid, &Entry{Action: action, EntityID: entityID, Data: data})
}

// Close stops the actor after every queued entry has been written.
func (r *Recorder) Close() error {
	return r.system.Root.PoisonFuture(r.pid).Wait()
}
