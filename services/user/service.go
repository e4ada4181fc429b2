package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"loyaltyhub/pkg/config"
	"loyaltyhub/pkg/db/pagination"
	"loyaltyhub/pkg/errutil"
	"loyaltyhub/pkg/logger"
	"loyaltyhub/pkg/repository"
	"loyaltyhub/pkg/util"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("loyaltyhub/services/user")

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	tokens *tokenIssuer
	cost   int
	now    func() time.Time

	user repository.Repository[User]
}

type ServiceParams struct {
	fx.In

	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
}

func NewService(p ServiceParams) (*Service, error) {
	secret := p.Config.Session.Secret
	if secret == "" {
		var err error
		if secret, err = util.RandomHex(32); err != nil {
			return nil, err
		}
		zap.L().Warn("[User] SESSION.SECRET not set, sessions will not survive a restart")
	}

	ttl := p.Config.Session.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	tokens, err := newTokenIssuer(secret, ttl)
	if err != nil {
		return nil, err
	}

	return &Service{
		db:     p.DB,
		node:   p.Node,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,

		user: repository.ProvideStore[User](p.DB),
	}, nil
}

type CreateParams struct {
	Username string `json:"username" form:"username"`
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Role     Role   `json:"role" form:"role"`
}

func (p *CreateParams) normalize() error {
	p.Username = strings.ToLower(strings.TrimSpace(p.Username))
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.Role == "" {
		p.Role = RoleStaff
	}

	var details []errutil.Detail
	if p.Username == "" {
		details = append(details, errutil.Detail{Field: "username", Message: "required"})
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		details = append(details, errutil.Detail{Field: "email", Message: "must be a valid email address"})
	}
	if len(p.Password) < minPasswordLength {
		details = append(details, errutil.Detail{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)})
	}
	if !p.Role.Valid() {
		details = append(details, errutil.Detail{Field: "role", Message: "must be admin or staff"})
	}

	if len(details) > 0 {
		return errutil.BadRequest("invalid user", nil, errutil.WithDetails(details...))
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req CreateParams) (*User, error) {
	ctx, span := tracer.Start(ctx, "user.Create")
	defer span.End()

	if err := req.normalize(); err != nil {
		return nil, err
	}

	exist, err := s.user.FindOne(ctx, &User{Username: req.Username})
	if err != nil {
		return nil, errutil.Internal("failed to check username", err)
	}
	if exist != nil {
		return nil, usernameTaken(req.Username, nil)
	}

	hash, err := hashPassword(req.Password, s.cost)
	if err != nil {
		return nil, errutil.Internal("failed to hash password", err)
	}

	u := &User{
		ID:           s.node.Generate().Int64(),
		Username:     req.Username,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	}

	if err := s.user.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, usernameTaken(req.Username, err)
		}
		logger.FromContext(ctx).Error("failed to create user", zap.Error(err))
		return nil, errutil.Internal("failed to create user", err)
	}

	logger.FromContext(ctx).Info("user created", zap.Int64("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	ctx, span := tracer.Start(ctx, "user.Get")
	defer span.End()

	if id <= 0 {
		return nil, errutil.NotFound("user not found", nil)
	}

	u, err := s.user.FindOne(ctx, &User{ID: id})
	if err != nil {
		return nil, errutil.Internal("failed to get user", err)
	}
	if u == nil {
		return nil, errutil.NotFound("user not found", nil)
	}
	return u, nil
}

func (s *Service) List(ctx context.Context, page pagination.Pagination) ([]*User, *pagination.PageInfo, error) {
	ctx, span := tracer.Start(ctx, "user.List")
	defer span.End()

	page = page.Normalize()
	opts, err := page.Options()
	if err != nil {
		return nil, nil, errutil.BadRequest("invalid cursor", err)
	}

	users, err := s.user.Find(ctx, &User{}, opts...)
	if err != nil {
		return nil, nil, errutil.Internal("failed to list users", err)
	}

	users, info := pagination.Paginate(users, page.Limit, func(u *User) int64 { return u.ID })
	return users, info, nil
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

// Authenticate checks the password and issues a signed session token. Unknown
// users and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "user.Authenticate")
	defer span.End()

	username = strings.ToLower(strings.TrimSpace(username))
	invalid := errutil.Unauthorized("invalid username or password", nil)

	if username == "" {
		return nil, invalid
	}

	u, err := s.user.FindOne(ctx, &User{Username: username})
	if err != nil {
		return nil, errutil.Internal("failed to authenticate", err)
	}
	if u == nil || !checkPassword(u.PasswordHash, password) {
		logger.FromContext(ctx).Info("login failed", zap.String("username", username))
		return nil, invalid
	}

	token, expires, err := s.tokens.issue(u, s.now().UTC())
	if err != nil {
		return nil, errutil.Internal("failed to issue session", err)
	}

	return &Session{Token: token, ExpiresAt: expires, User: u}, nil
}

func (s *Service) ParseToken(raw string) (*Claims, error) {
	claims, err := s.tokens.parse(raw, s.now().UTC())
	if err != nil {
		return nil, errutil.Unauthorized("invalid session", err)
	}
	return claims, nil
}

// Bootstrap creates the initial admin account when no user exists yet.
func (s *Service) Bootstrap(ctx context.Context, username, password, email string) (bool, error) {
	count, err := s.user.Count(ctx, &User{})
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if password == "" {
		return false, errors.New("ADMIN.PASSWORD is required to create the first admin user")
	}

	_, err = s.Create(ctx, CreateParams{
		Username: username,
		Name:     "Administrator",
		Email:    email,
		Password: password,
		Role:     RoleAdmin,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func usernameTaken(username string, err error) error {
	return errutil.Conflict("username already taken", err,
		errutil.WithDetails(errutil.Detail{Field: "username", Message: username + " is already taken"}))
}
