package testutil

import (
	"net/http"

	id "trustlane/pkg/domain"
	"trustlane/pkg/platform/middleware/actor"
)

// WithActorHeaders sets the gateway headers the actor middleware reads.
func WithActorHeaders(req *http.Request, a id.Actor) *http.Request {
	req.Header.Set(actor.HeaderActorID, a.UserID.String())
	req.Header.Set(actor.HeaderActorRole, string(a.Role))
	return req
}

// NewActor returns a fresh actor with the given role.
func NewActor(role id.Role) id.Actor {
	return id.Actor{UserID: id.NewUserID(), Role: role}
}
