package auth

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/microlms/core"
)

var errNotFound = core.NewError(core.KindNotFound, "user not found")

type resolverMock map[string]Identity

func (m resolverMock) ResolveIdentity(_ context.Context, email string) (Identity, error) {
	if email == "broken@test.cd" {
		return Identity{}, errors.New("db down")
	}
	if id, ok := m[email]; ok {
		return id, nil
	}
	return Identity{}, errNotFound
}

func TestGate_Authenticate(t *testing.T) {
	ts := newTestTokenService(time.Now().UTC())
	// roles changed since token issuance: the live ones win
	live := Identity{UserID: "1", Email: "s@test.cd", Roles: Roles{RoleStudent, RoleTeacher}}
	gate := NewGate(ts, resolverMock{live.Email: live})

	token, err := ts.Issue(live.Email, Roles{RoleStudent})
	require.NoError(t, err)
	ghost, err := ts.Issue("ghost@test.cd", Roles{RoleStudent})
	require.NoError(t, err)
	broken, err := ts.Issue("broken@test.cd", Roles{RoleStudent})
	require.NoError(t, err)

	tests := []struct {
		name         string
		header       string
		want         Identity
		wantErr      error
		wantInternal bool
	}{
		{name: "no header", want: Identity{}},
		{name: "basic scheme", header: "Basic dXNlcjpwd2Q=", want: Identity{}},
		{name: "bearer without token", header: "Bearer", wantErr: ErrTokenMalformed},
		{name: "malformed", header: "Bearer lol", wantErr: ErrTokenMalformed},
		{name: "unknown subject", header: "Bearer " + ghost, wantErr: ErrUnknownSubject},
		{name: "resolver failure", header: "Bearer " + broken, wantInternal: true},
		{name: "valid", header: "Bearer " + token, want: live},
		{name: "lower case scheme", header: "bearer " + token, want: live},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.Authenticate(context.Background(), tt.header)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			if tt.wantInternal {
				require.Error(t, err)
				assert.Equal(t, core.KindInternal, core.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGate_AuthenticateContext(t *testing.T) {
	ts := newTestTokenService(time.Now().UTC())
	student := Identity{UserID: "1", Email: "s@test.cd", Roles: Roles{RoleStudent}}
	teacher := Identity{UserID: "2", Email: "t@test.cd", Roles: Roles{RoleTeacher}}
	gate := NewGate(ts, resolverMock{student.Email: student, teacher.Email: teacher})

	studentToken, err := ts.Issue(student.Email, student.Roles)
	require.NoError(t, err)
	teacherToken, err := ts.Issue(teacher.Email, teacher.Roles)
	require.NoError(t, err)

	ctx, err := gate.AuthenticateContext(context.Background(), "Bearer "+studentToken)
	require.NoError(t, err)
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, student, id)

	// a second pass never overwrites the attached identity
	ctx, err = gate.AuthenticateContext(ctx, "Bearer "+teacherToken)
	require.NoError(t, err)
	id, _ = FromContext(ctx)
	assert.Equal(t, student, id)

	// anonymous calls still get an (anonymous) identity attached
	ctx, err = gate.AuthenticateContext(context.Background(), "")
	require.NoError(t, err)
	id, ok = FromContext(ctx)
	assert.True(t, ok)
	assert.True(t, id.IsAnonymous())
}
