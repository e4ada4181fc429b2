package customer

import (
	"context"
	"errors"
	"strings"

	"loyaltyhub/pkg/db/option"
	"loyaltyhub/pkg/db/pagination"
	"loyaltyhub/pkg/errutil"
	"loyaltyhub/pkg/logger"
	"loyaltyhub/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("loyaltyhub/services/customer")

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	customer repository.Repository[Customer]
}

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		customer: repository.ProvideStore[Customer](p.DB),
	}
}

type CreateParams struct {
	First string `json:"first" form:"first"`
	Last  string `json:"last" form:"last"`
	Email string `json:"email" form:"email"`
}

func (p *CreateParams) normalize() error {
	p.First = strings.TrimSpace(p.First)
	p.Last = strings.TrimSpace(p.Last)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))

	var details []errutil.Detail
	if p.First == "" {
		details = append(details, errutil.Detail{Field: "first", Message: "required"})
	}
	if p.Last == "" {
		details = append(details, errutil.Detail{Field: "last", Message: "required"})
	}
	switch {
	case p.Email == "":
		details = append(details, errutil.Detail{Field: "email", Message: "required"})
	case !strings.Contains(p.Email, "@"):
		details = append(details, errutil.Detail{Field: "email", Message: "must be a valid email address"})
	}

	if len(details) > 0 {
		return errutil.BadRequest("invalid customer", nil, errutil.WithDetails(details...))
	}
	return nil
}

type UpdateParams = CreateParams

func (s *Service) Create(ctx context.Context, req CreateParams) (*Customer, error) {
	ctx, span := tracer.Start(ctx, "customer.Create")
	defer span.End()

	if err := req.normalize(); err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, req.Email, 0); err != nil {
		return nil, err
	}

	c := &Customer{
		ID:    s.node.Generate().Int64(),
		First: req.First,
		Last:  req.Last,
		Email: req.Email,
	}

	if err := s.customer.Create(ctx, c); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, emailTaken(req.Email, err)
		}
		logger.FromContext(ctx).Error("failed to create customer", zap.Error(err))
		return nil, errutil.Internal("failed to create customer", err)
	}

	span.SetAttributes(attribute.Int64("customer.id", c.ID))
	logger.FromContext(ctx).Info("customer created", zap.Int64("customer_id", c.ID))
	return c, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	ctx, span := tracer.Start(ctx, "customer.Get")
	defer span.End()

	if id <= 0 {
		return nil, errutil.NotFound("customer not found", nil)
	}

	c, err := s.customer.FindOne(ctx, &Customer{ID: id})
	if err != nil {
		logger.FromContext(ctx).Error("failed to query customer", zap.Int64("customer_id", id), zap.Error(err))
		return nil, errutil.Internal("failed to get customer", err)
	}
	if c == nil {
		return nil, errutil.NotFound("customer not found", nil)
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, page pagination.Pagination) ([]*Customer, *pagination.PageInfo, error) {
	ctx, span := tracer.Start(ctx, "customer.List")
	defer span.End()

	page = page.Normalize()
	opts, err := page.Options()
	if err != nil {
		return nil, nil, errutil.BadRequest("invalid cursor", err)
	}

	customers, err := s.customer.Find(ctx, &Customer{}, opts...)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list customers", zap.Error(err))
		return nil, nil, errutil.Internal("failed to list customers", err)
	}

	customers, info := pagination.Paginate(customers, page.Limit, func(c *Customer) int64 { return c.ID })
	return customers, info, nil
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateParams) (*Customer, error) {
	ctx, span := tracer.Start(ctx, "customer.Update")
	defer span.End()

	if err := req.normalize(); err != nil {
		return nil, err
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, req.Email, id); err != nil {
		return nil, err
	}

	err := s.customer.Update(ctx, id, map[string]any{
		"first": req.First,
		"last":  req.Last,
		"email": req.Email,
	})
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return nil, emailTaken(req.Email, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errutil.NotFound("customer not found", err)
	case err != nil:
		logger.FromContext(ctx).Error("failed to update customer", zap.Int64("customer_id", id), zap.Error(err))
		return nil, errutil.Internal("failed to update customer", err)
	}

	return s.Get(ctx, id)
}

func (s *Service) ensureEmailFree(ctx context.Context, email string, self int64) error {
	opts := []option.QueryOption{}
	if self != 0 {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "id", Operator: option.NEQ, Value: self}))
	}

	exist, err := s.customer.FindOne(ctx, &Customer{Email: email}, opts...)
	if err != nil {
		return errutil.Internal("failed to check customer email", err)
	}
	if exist != nil {
		return emailTaken(email, nil)
	}
	return nil
}

func emailTaken(email string, err error) error {
	return errutil.Conflict("customer email already registered", err,
		errutil.WithDetails(errutil.Detail{Field: "email", Message: email + " is already registered"}))
}
