package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Parley/internal/model"
	"Parley/internal/pkg/identity"
	"Parley/internal/pkg/notify"
)

func newSession(env *testEnv, provider *fakeProvider, users *recordingUsers, engine *fakeLifecycle) *SessionService {
	return NewSessionService(provider, users, env.notifier, engine)
}

func TestInitAuthCreatesProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	provider := &fakeProvider{current: &identity.Identity{UID: "u1", Email: "u1@example.com"}}
	engine := &fakeLifecycle{}
	session := newSession(env, provider, &recordingUsers{UserRepo: env.users}, engine)

	assert.True(t, session.Loading())
	sub := session.InitAuth(ctx)
	defer sub.Unsubscribe()

	assert.False(t, session.Loading())
	require.True(t, session.IsAuthenticated())
	user := session.User()
	assert.Equal(t, AnonymousName, user.Name)
	assert.True(t, user.IsOnline)
	assert.Equal(t, []string{"u1"}, engine.started)

	stored, err := env.users.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, stored.IsOnline)
	assert.Equal(t, "u1@example.com", stored.Email)
}

func TestInitAuthMarksExistingProfileOnline(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	require.NoError(t, env.users.CreateUser(ctx, &model.User{ID: "u1", Name: "Alice"}))
	before, err := env.users.GetUser(ctx, "u1")
	require.NoError(t, err)

	var calls []string
	provider := &fakeProvider{current: &identity.Identity{UID: "u1", DisplayName: "Renamed"}}
	session := newSession(env, provider, &recordingUsers{UserRepo: env.users, calls: &calls}, &fakeLifecycle{})
	session.InitAuth(ctx)

	assert.Equal(t, []string{"online"}, calls)
	after, err := env.users.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", after.Name)
	assert.True(t, after.IsOnline)
	assert.True(t, after.LastSeen.After(before.LastSeen))

	cached := session.User()
	assert.True(t, cached.IsOnline)
	assert.True(t, cached.LastSeen.Equal(after.LastSeen))
}

func TestInitAuthWithoutIdentity(t *testing.T) {
	env := newTestEnv()
	engine := &fakeLifecycle{}
	session := newSession(env, &fakeProvider{}, &recordingUsers{UserRepo: env.users}, engine)
	session.InitAuth(context.Background())

	assert.False(t, session.Loading())
	assert.False(t, session.IsAuthenticated())
	assert.Nil(t, session.User())
	assert.Equal(t, 1, engine.stops)
}

func TestSignInWithEmail(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	provider := &fakeProvider{}
	engine := &fakeLifecycle{}
	session := newSession(env, provider, &recordingUsers{UserRepo: env.users}, engine)
	session.InitAuth(ctx)

	require.NoError(t, session.SignInWithEmail(ctx, "u1@example.com", "secret"))
	assert.Equal(t, "u1", session.CurrentUserID())
	assert.Equal(t, "Alice", session.User().Name)
	assert.NoError(t, session.Err())
	assert.Equal(t, notify.SeveritySuccess, env.board.Current().Type)
	assert.ErrorIs(t, session.SignInWithEmail(ctx, "", ""), ErrParamInvalid)
}

func TestSignInWithEmailFailureIsRaised(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	provider := &fakeProvider{signInErr: identity.ErrInvalidCredentials}
	session := newSession(env, provider, &recordingUsers{UserRepo: env.users}, &fakeLifecycle{})
	session.InitAuth(ctx)

	err := session.SignInWithEmail(ctx, "u1@example.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, FailureAuthentication, kind)
	code, _ := CodeOf(err)
	assert.Equal(t, Unauthorized, code)

	assert.Equal(t, err, session.Err())
	assert.False(t, session.Loading())
	assert.Equal(t, notify.SeverityError, env.board.Current().Type)
}

func TestSignInWithGoogleFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	provider := &fakeProvider{signInErr: identity.ErrFederatedDisabled}
	session := newSession(env, provider, &recordingUsers{UserRepo: env.users}, &fakeLifecycle{})
	session.InitAuth(ctx)

	session.SignInWithGoogle(ctx)
	assert.ErrorIs(t, session.Err(), ErrFederatedDisabled)
	assert.False(t, session.IsAuthenticated())
	assert.Equal(t, notify.SeverityError, env.board.Current().Type)
}

func TestLogoutWritesOfflineBeforeSignOut(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	var calls []string
	provider := &fakeProvider{current: &identity.Identity{UID: "u1"}, calls: &calls}
	engine := &fakeLifecycle{calls: &calls}
	session := newSession(env, provider, &recordingUsers{UserRepo: env.users, calls: &calls}, engine)
	session.InitAuth(ctx)
	calls = nil

	require.NoError(t, session.Logout(ctx))
	require.GreaterOrEqual(t, len(calls), 3)
	assert.Equal(t, []string{"offline", "signout", "stop"}, calls[:3])

	assert.False(t, session.IsAuthenticated())
	stored, err := env.users.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, stored.IsOnline)
	assert.Equal(t, notify.SeverityInfo, env.board.Current().Type)
}

func TestLogoutSignsOutWhenPresenceFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	var calls []string
	users := &recordingUsers{UserRepo: env.users, calls: &calls}
	provider := &fakeProvider{current: &identity.Identity{UID: "u1"}, calls: &calls}
	session := newSession(env, provider, users, &fakeLifecycle{})
	session.InitAuth(ctx)
	users.presenceErr = errBackend
	calls = nil

	require.NoError(t, session.Logout(ctx))
	assert.Equal(t, []string{"offline", "signout"}, calls)
	assert.False(t, session.IsAuthenticated())
}

func TestLogoutSignOutFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	provider := &fakeProvider{current: &identity.Identity{UID: "u1"}, signOut: errBackend}
	session := newSession(env, provider, &recordingUsers{UserRepo: env.users}, &fakeLifecycle{})
	session.InitAuth(ctx)

	err := session.Logout(ctx)
	require.ErrorIs(t, err, errBackend)
	assert.ErrorIs(t, session.Err(), errBackend)
	assert.Equal(t, notify.SeverityError, env.board.Current().Type)
}

func TestUpdateOnlineStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	var calls []string
	provider := &fakeProvider{}
	session := newSession(env, provider, &recordingUsers{UserRepo: env.users, calls: &calls}, &fakeLifecycle{})
	session.InitAuth(ctx)

	require.NoError(t, session.UpdateOnlineStatus(ctx, true))
	assert.Empty(t, calls)

	require.NoError(t, session.SignInWithEmail(ctx, "u1@example.com", "secret"))
	require.NoError(t, session.UpdateOnlineStatus(ctx, false))
	assert.False(t, session.User().IsOnline)
	stored, err := env.users.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, session.User().LastSeen.Equal(stored.LastSeen))
	require.NoError(t, session.Heartbeat(ctx))
	assert.Equal(t, []string{"offline"}, calls)

	require.NoError(t, session.UpdateOnlineStatus(ctx, true))
	require.NoError(t, session.Heartbeat(ctx))
	assert.Equal(t, []string{"offline", "online", "online"}, calls)
}

func TestSessionDrivesEngine(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	engine := env.engine(ChatConfig{})
	provider := &fakeProvider{}
	session := NewSessionService(provider, env.users, env.notifier, engine)
	session.InitAuth(ctx)

	require.NoError(t, session.SignInWithEmail(ctx, "u1@example.com", "secret"))
	require.Len(t, engine.Roster(), 1)
	require.NoError(t, engine.OpenMessageSubscription(ctx, "chat-1"))

	require.NoError(t, session.Logout(ctx))
	assert.Empty(t, engine.Roster())
	assert.ErrorIs(t, engine.OpenMessageSubscription(ctx, "chat-1"), ErrNotAuthenticated)
}
