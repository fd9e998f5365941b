package identity_test

import (
	"context"
	"sync"
	"testing"

	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() (*identity.Manager, *fakeStore, *capturingSink) {
	store := newFakeStore()
	sink := &capturingSink{}
	manager := identity.NewManager(store).
		WithHasher(plaintextHasher{}).
		WithActivitySink(sink)
	return manager, store, sink
}

func TestManager_RegisterAndAuthenticate(t *testing.T) {
	manager, _, sink := newTestManager()
	ctx := context.Background()

	created, err := manager.Register(ctx, identity.RegisterUserParams{
		Email:     "  Pepe.Rone@Example.COM ",
		Password:  "margherita",
		FirstName: "Pepe",
		LastName:  "Rone",
		IsActive:  true,
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, "pepe.rone@example.com", created.Email)
	assert.Equal(t, identity.RoleMember, created.Role)
	assert.NotEqual(t, "margherita", created.PasswordHash)

	// lookup is case-insensitive too
	user, err := manager.Authenticate(ctx, "PEPE.RONE@example.com", "margherita")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	assert.Len(t, sink.byType(identity.ActivityEventUserRegistered), 1)
	assert.Len(t, sink.byType(identity.ActivityEventLoginSuccess), 1)
}

func TestManager_Register_InvalidEmail(t *testing.T) {
	manager, _, _ := newTestManager()

	_, err := manager.Register(context.Background(), identity.RegisterUserParams{
		Email:    "not an email",
		Password: "whatever",
	})
	assert.Error(t, err)
}

func TestManager_Register_DuplicateEmail(t *testing.T) {
	manager, _, _ := newTestManager()
	ctx := context.Background()

	params := identity.RegisterUserParams{
		Email:    "taken@example.com",
		Password: "first-secret",
	}

	_, err := manager.Register(ctx, params)
	require.NoError(t, err)

	params.Password = "second-secret"
	_, err = manager.Register(ctx, params)
	require.Error(t, err)
	assert.True(t, identity.IsAlreadyExists(err))
}

func TestManager_Register_ConcurrentDuplicates(t *testing.T) {
	manager, _, _ := newTestManager()
	ctx := context.Background()

	const attempts = 16

	var wg sync.WaitGroup
	results := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = manager.Register(ctx, identity.RegisterUserParams{
				Email:    "raced@example.com",
				Password: "secret",
			})
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case identity.IsAlreadyExists(err):
			conflicted++
		default:
			t.Fatalf("unexpected registration error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicted)
}

func TestManager_Authenticate_UniformFailure(t *testing.T) {
	manager, _, sink := newTestManager()
	ctx := context.Background()

	_, err := manager.Register(ctx, identity.RegisterUserParams{
		Email:    "known@example.com",
		Password: "right-password",
	})
	require.NoError(t, err)

	// unknown account and wrong password are indistinguishable
	_, unknownErr := manager.Authenticate(ctx, "nobody@example.com", "whatever")
	_, wrongErr := manager.Authenticate(ctx, "known@example.com", "wrong-password")

	assert.ErrorIs(t, unknownErr, identity.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, identity.ErrInvalidCredentials)

	failures := sink.byType(identity.ActivityEventLoginFailure)
	require.Len(t, failures, 1)
	assert.Equal(t, "known@example.com", failures[0].Email)
}

func TestManager_Authenticate_NoUsablePassword(t *testing.T) {
	manager, store, _ := newTestManager()
	ctx := context.Background()

	_, err := store.users.Register(ctx, &identity.User{
		Email:    "sso-only@example.com",
		IsActive: true,
	})
	require.NoError(t, err)

	_, err = manager.Authenticate(ctx, "sso-only@example.com", "")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestManager_FederatedLogin_ProvisionsNewAccount(t *testing.T) {
	manager, _, sink := newTestManager()
	ctx := context.Background()

	user, err := manager.FederatedLogin(ctx, "Fresh@Example.com", identity.FederatedLoginOptions{
		AssociateByEmail:  true,
		VerifiedByDefault: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "fresh@example.com", user.Email)
	assert.Equal(t, identity.RoleMember, user.Role)
	assert.True(t, user.IsActive)
	assert.True(t, user.IsVerified)
	assert.True(t, user.HasUsablePassword())

	// the placeholder secret is random, no guessable password matches
	_, err = manager.Authenticate(ctx, "fresh@example.com", "")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	assert.Len(t, sink.byType(identity.ActivityEventFederatedLogin), 1)
}

func TestManager_FederatedLogin_AssociatesExisting(t *testing.T) {
	manager, _, _ := newTestManager()
	ctx := context.Background()

	existing, err := manager.Register(ctx, identity.RegisterUserParams{
		Email:    "linked@example.com",
		Password: "local-secret",
		IsActive: true,
	})
	require.NoError(t, err)

	user, err := manager.FederatedLogin(ctx, "linked@example.com", identity.FederatedLoginOptions{
		AssociateByEmail: true,
	})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)

	// the local password remains valid after the federated login
	_, err = manager.Authenticate(ctx, "linked@example.com", "local-secret")
	assert.NoError(t, err)
}

func TestManager_FederatedLogin_RejectsCollisionWithoutAssociation(t *testing.T) {
	manager, _, _ := newTestManager()
	ctx := context.Background()

	_, err := manager.Register(ctx, identity.RegisterUserParams{
		Email:    "collision@example.com",
		Password: "local-secret",
	})
	require.NoError(t, err)

	_, err = manager.FederatedLogin(ctx, "collision@example.com", identity.FederatedLoginOptions{
		AssociateByEmail: false,
	})
	assert.True(t, identity.IsAlreadyExists(err))
}

func TestManager_BootstrapAdmin(t *testing.T) {
	manager, _, _ := newTestManager()
	ctx := context.Background()

	admin, err := manager.BootstrapAdmin(ctx, "root@example.com", "root-secret")
	require.NoError(t, err)

	assert.Equal(t, identity.RoleAdmin, admin.Role)
	assert.True(t, admin.IsSuperuser)
	assert.True(t, admin.IsVerified)
	assert.True(t, admin.IsActive)
	assert.True(t, admin.IsPrivileged())

	// a second bootstrap is a no-op returning the same account
	again, err := manager.BootstrapAdmin(ctx, "root@example.com", "different-secret")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	// the original password still authenticates
	_, err = manager.Authenticate(ctx, "root@example.com", "root-secret")
	assert.NoError(t, err)
}

func TestManager_BootstrapAdmin_MissingConfig(t *testing.T) {
	manager, _, _ := newTestManager()
	ctx := context.Background()

	_, err := manager.BootstrapAdmin(ctx, "", "secret")
	assert.ErrorIs(t, err, identity.ErrMissingBootstrapConfig)

	_, err = manager.BootstrapAdmin(ctx, "root@example.com", "")
	assert.ErrorIs(t, err, identity.ErrMissingBootstrapConfig)
}

func TestManager_ListUsers(t *testing.T) {
	manager, _, _ := newTestManager()
	ctx := context.Background()

	emails := []string{"a@example.com", "b@example.com", "c@example.com"}
	for _, email := range emails {
		_, err := manager.Register(ctx, identity.RegisterUserParams{
			Email:    email,
			Password: "secret",
		})
		require.NoError(t, err)
	}

	users, err := manager.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, len(emails))
}
