package models

// ActorKind distinguishes human-initiated transitions from engine-initiated ones.
type ActorKind string

const (
	ActorKindHuman  ActorKind = "human"
	ActorKindSystem ActorKind = "system"
)

// Actor identifies who caused a transition. The system actor has no user ID
// and never passes a permission gate; automatic transitions skip the gate
// entirely, so history records for them carry the system actor rather than a
// sentinel user that would need a lookup.
type Actor struct {
	Kind   ActorKind `json:"kind"`
	UserID string    `json:"user_id,omitempty"`
}

// HumanActor builds an actor for the given user.
func HumanActor(userID string) Actor {
	return Actor{Kind: ActorKindHuman, UserID: userID}
}

// SystemActor builds the engine's own actor identity.
func SystemActor() Actor {
	return Actor{Kind: ActorKindSystem}
}

// IsSystem reports whether the actor is the engine itself.
func (a Actor) IsSystem() bool {
	return a.Kind == ActorKindSystem
}

func (a Actor) String() string {
	if a.IsSystem() {
		return "system"
	}

	return a.UserID
}
