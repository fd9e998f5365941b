package identity

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/nyaruka/phonenumbers"
)

// ControllerRoutes names the endpoints the controller registers
type ControllerRoutes struct {
	Login    string
	Logout   string
	Register string
	Me       string
	Users    string
	SSO      string
}

// Controller exposes the identity subsystem over HTTP. Logout is POST-only
// per the transport contract: a valid credential gets revoked and cleared,
// anything else gets an unauthenticated-class status.
type Controller struct {
	Debug        bool
	Logger       Logger
	Manager      *Manager
	Strategy     AuthStrategy
	Backend      *Backend
	Guards       *Guards
	Routes       *ControllerRoutes
	ErrorHandler func(router.Context, error) error
}

// ControllerOption mutates the controller during construction
type ControllerOption func(*Controller) *Controller

// NewController builds the HTTP controller
func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &ControllerRoutes{
			Login:    "/login",
			Logout:   "/logout",
			Register: "/register",
			Me:       "/me",
			Users:    "/users",
			SSO:      "/sso/callback",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Manager == nil {
		panic("Missing Manager in identity controller...")
	}

	if c.Strategy == nil {
		panic("Missing AuthStrategy in identity controller...")
	}

	if c.Backend == nil {
		panic("Missing Backend in identity controller...")
	}

	if c.Guards == nil {
		c.Guards = NewGuards(c.Backend)
	}

	return c
}

// WithManager sets the user manager
func WithManager(m *Manager) ControllerOption {
	return func(c *Controller) *Controller {
		c.Manager = m
		return c
	}
}

// WithStrategy sets the authentication strategy
func WithStrategy(s AuthStrategy) ControllerOption {
	return func(c *Controller) *Controller {
		c.Strategy = s
		return c
	}
}

// WithBackend sets the authentication backend
func WithBackend(b *Backend) ControllerOption {
	return func(c *Controller) *Controller {
		c.Backend = b
		return c
	}
}

// WithGuards sets the access guards
func WithGuards(g *Guards) ControllerOption {
	return func(c *Controller) *Controller {
		c.Guards = g
		return c
	}
}

// RegisterRoutes mounts the identity endpoints on the given router
func RegisterRoutes[T any](app router.Router[T], opts ...ControllerOption) {
	controller := NewController(opts...)

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("identity.login.post")

	app.Post(controller.Routes.Logout, controller.LogoutPost).
		SetName("identity.logout.post")

	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("identity.register.post")

	app.Get(controller.Routes.Me, controller.MeGet).
		SetName("identity.me.get")

	app.Get(controller.Routes.Users, controller.UsersList).
		SetName("identity.users.get")

	if controller.Strategy.Kind() == StrategyFederated {
		app.Post(controller.Routes.SSO, controller.SSOCallback).
			SetName("identity.sso.post")
	}
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *Controller) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, errorBody("failed to parse body"))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, validationBody(err))
	}

	if a.Debug {
		fmt.Println("======= IDENTITY LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=============================")
	}

	user, err := a.Strategy.Login(ctx.Context(), Credentials{
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		a.Logger.Info("login rejected", "error", err)
		return ctx.JSON(fiber.StatusUnauthorized, errorBody("authentication failed"))
	}

	if !user.IsActive {
		return ctx.JSON(fiber.StatusForbidden, errorBody("account is not active"))
	}

	if err := a.Backend.Login(ctx, user); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{"user": user})
}

func (a *Controller) LogoutPost(ctx router.Context) error {
	if err := a.Backend.Logout(ctx); err != nil {
		if IsUnauthenticated(err) {
			return ctx.JSON(fiber.StatusUnauthorized, errorBody("missing or invalid session"))
		}
		return a.ErrorHandler(ctx, err)
	}

	return ctx.NoContent(fiber.StatusNoContent)
}

// RegistrationCreatePayload is the registration payload
type RegistrationCreatePayload struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone_number" json:"phone_number"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber(""))),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *Controller) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload: ", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, errorBody("failed to parse body"))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload: ", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, validationBody(err))
	}

	var created *User
	req := RegisterUserMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Password:  payload.Password,
		OnResponse: func(u *User) {
			created = u
		},
	}

	registerUser := NewRegisterUserHandler(a.Manager)
	if err := registerUser.Execute(ctx.Context(), req); err != nil {
		if IsAlreadyExists(err) {
			return ctx.JSON(fiber.StatusConflict, errorBody("a user with that email already exists"))
		}
		a.Logger.Error("register user error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, map[string]any{"user": created})
}

func (a *Controller) MeGet(ctx router.Context) error {
	user, err := a.Guards.CurrentUser(ctx, Requirements{Active: true})
	if err != nil {
		return a.guardError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{"user": user})
}

func (a *Controller) UsersList(ctx router.Context) error {
	user, err := a.Guards.CurrentUser(ctx, Requirements{Active: true})
	if err != nil {
		return a.guardError(ctx, err)
	}

	if !IsPrivileged(user) {
		return ctx.JSON(fiber.StatusForbidden, errorBody("administrator access required"))
	}

	list, err := a.Manager.ListUsers(ctx.Context())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{"users": list})
}

// SSOAssertionPayload carries the raw signed assertion from the IdP callback
type SSOAssertionPayload struct {
	Assertion string `form:"assertion" json:"assertion"`
}

// Validate will run validation rules
func (r SSOAssertionPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Assertion, validation.Required),
	)
}

func (a *Controller) SSOCallback(ctx router.Context) error {
	payload := new(SSOAssertionPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, errorBody("failed to parse body"))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, validationBody(err))
	}

	user, err := a.Strategy.Login(ctx.Context(), Credentials{
		Assertion: payload.Assertion,
	})
	if err != nil {
		if IsAlreadyExists(err) {
			return ctx.JSON(fiber.StatusConflict, errorBody("an account with that email already exists"))
		}
		a.Logger.Info("federated login rejected", "error", err)
		return ctx.JSON(fiber.StatusUnauthorized, errorBody("authentication failed"))
	}

	if err := a.Backend.Login(ctx, user); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{"user": user})
}

func (a *Controller) guardError(ctx router.Context, err error) error {
	if IsForbidden(err) {
		return ctx.JSON(fiber.StatusForbidden, errorBody("account does not meet access requirements"))
	}
	return ctx.JSON(fiber.StatusUnauthorized, errorBody("missing or invalid session"))
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// ValidatePhoneNumber validates an optional phone field. Region may be empty
// for numbers supplied in international format.
func ValidatePhoneNumber(region string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}

		num, err := phonenumbers.Parse(s, region)
		if err != nil {
			return errors.New("must be a valid phone number")
		}

		if !phonenumbers.IsValidNumber(num) {
			return errors.New("must be a valid phone number")
		}

		return nil
	}
}

func errorBody(message string) map[string]any {
	return map[string]any{"error": message}
}

func validationBody(err error) map[string]any {
	if verr, ok := err.(validation.Errors); ok {
		fields := map[string]string{}
		for name, ferr := range verr {
			fields[name] = ferr.Error()
		}
		return map[string]any{"error": "validation failed", "fields": fields}
	}
	return map[string]any{"error": "validation failed", "detail": err.Error()}
}

func defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return c.JSON(richErr.Code, errorBody(richErr.Message))
	}
	return c.JSON(fiber.StatusInternalServerError, errorBody("internal server error"))
}
