package payroll

import "context"

// Actor identifies who performs an operation. Scheduled jobs run as a system actor.
type Actor struct {
	CompanyID string
	UserID    string
	System    bool
}

// SystemActorID is recorded as the actor of scheduled transitions.
const SystemActorID = "system"

func (a Actor) ID() string {
	if a.System {
		return SystemActorID
	}
	return a.UserID
}

type actorKey struct{}

func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
