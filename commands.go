package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

// RegisterUserMessage is the registration command payload
type RegisterUserMessage struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	UseHashid bool
	// OnResponse receives the created user when provided
	OnResponse func(*User)
}

func (e RegisterUserMessage) Type() string { return "identity.user.register" }

// RegisterUserHandler executes registrations on behalf of the controller
// and bootstrap paths.
type RegisterUserHandler struct {
	manager *Manager
}

var _ command.Commander[RegisterUserMessage] = (*RegisterUserHandler)(nil)

// NewRegisterUserHandler returns the registration command handler
func NewRegisterUserHandler(manager *Manager) *RegisterUserHandler {
	return &RegisterUserHandler{manager: manager}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	role := event.Role
	if role == "" {
		role = RoleMember
	}

	if _, ok := ParseRole(role); !ok {
		return goerrors.New("unknown or invalid role", goerrors.CategoryValidation).
			WithTextCode("INVALID_ROLE").
			WithMetadata(map[string]any{"role": event.Role})
	}

	user, err := h.manager.Register(ctx, RegisterUserParams{
		Email:     event.Email,
		Password:  event.Password,
		FirstName: event.FirstName,
		LastName:  event.LastName,
		Phone:     event.Phone,
		Role:      role,
		IsActive:  true,
		UseHashid: event.UseHashid,
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
