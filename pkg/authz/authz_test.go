package authz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/admitflow/admitflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticAuthorizer(t *testing.T) {
	authorizer := NewStaticAuthorizer(map[string][]string{
		"staff-1": {"make_decision", "view_documents"},
		"staff-2": {"view_documents"},
	})

	tests := []struct {
		name        string
		actor       models.Actor
		permissions []string
		want        bool
	}{
		{"all held", models.HumanActor("staff-1"), []string{"make_decision"}, true},
		{"multiple held", models.HumanActor("staff-1"), []string{"make_decision", "view_documents"}, true},
		{"one missing", models.HumanActor("staff-2"), []string{"make_decision"}, false},
		{"unknown user", models.HumanActor("ghost"), []string{"view_documents"}, false},
		{"empty requirement", models.HumanActor("ghost"), nil, true},
		{"system bypasses", models.SystemActor(), []string{"make_decision"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := authorizer.ActorHasPermissions(t.Context(), tt.actor, tt.permissions)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestNewStaticAuthorizerFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"staff-1": ["make_decision"]}`), 0o600))

	authorizer, err := NewStaticAuthorizerFromFile(path)
	require.NoError(t, err)

	ok, err := authorizer.ActorHasPermissions(t.Context(), models.HumanActor("staff-1"), []string{"make_decision"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = authorizer.ActorHasPermissions(t.Context(), models.HumanActor("staff-2"), []string{"make_decision"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewStaticAuthorizerFromFile_EmptyPath(t *testing.T) {
	authorizer, err := NewStaticAuthorizerFromFile("")
	require.NoError(t, err)

	ok, err := authorizer.ActorHasPermissions(t.Context(), models.HumanActor("staff-1"), []string{"make_decision"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = authorizer.ActorHasPermissions(t.Context(), models.SystemActor(), []string{"make_decision"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewStaticAuthorizerFromFile_Errors(t *testing.T) {
	_, err := NewStaticAuthorizerFromFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "grants.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))

	_, err = NewStaticAuthorizerFromFile(path)
	require.Error(t, err)
}
