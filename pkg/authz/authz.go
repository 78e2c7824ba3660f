// Package authz defines the permission-check contract the transition executor
// relies on. The production implementation lives in the identity service;
// this package ships a static implementation for tests and development.
package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/admitflow/admitflow/pkg/models"
)

// Authorizer answers whether an actor holds a set of permissions. The engine
// only consults it for manual transitions; automatic transitions run as the
// system actor and have no permission gate.
type Authorizer interface {
	ActorHasPermissions(ctx context.Context, actor models.Actor, permissionIDs []string) (bool, error)
}

// StaticAuthorizer grants permissions from an in-memory map of user ID to
// permission set.
type StaticAuthorizer struct {
	grants map[string]map[string]bool
}

// NewStaticAuthorizer builds an authorizer from user-to-permissions grants.
func NewStaticAuthorizer(grants map[string][]string) *StaticAuthorizer {
	indexed := make(map[string]map[string]bool, len(grants))

	for userID, permissions := range grants {
		set := make(map[string]bool, len(permissions))
		for _, permission := range permissions {
			set[permission] = true
		}

		indexed[userID] = set
	}

	return &StaticAuthorizer{grants: indexed}
}

// NewStaticAuthorizerFromFile loads grants from a JSON file mapping user IDs
// to permission lists. An empty path yields an authorizer with no grants, so
// only system-actor transitions pass.
func NewStaticAuthorizerFromFile(path string) (*StaticAuthorizer, error) {
	if path == "" {
		return NewStaticAuthorizer(nil), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grants file %s: %w", path, err)
	}

	var grants map[string][]string
	if err := json.Unmarshal(raw, &grants); err != nil {
		return nil, fmt.Errorf("failed to parse grants file %s: %w", path, err)
	}

	return NewStaticAuthorizer(grants), nil
}

func (a *StaticAuthorizer) ActorHasPermissions(_ context.Context, actor models.Actor, permissionIDs []string) (bool, error) {
	if actor.IsSystem() {
		return true, nil
	}

	held := a.grants[actor.UserID]

	for _, permission := range permissionIDs {
		if !held[permission] {
			return false, nil
		}
	}

	return true, nil
}
