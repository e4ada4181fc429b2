package user

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Resources and actions checked by the HTTP layer.
const (
	ResourceUsers     = "users"
	ResourceCustomers = "customers"
	ResourcePurchases = "purchases"
	ResourceVouchers  = "vouchers"
	ResourceConfig    = "config"

	ActionRead  = "read"
	ActionWrite = "write"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && (p.act == "*" || r.act == p.act)
`

var policies = [][]string{
	{string(RoleAdmin), "*", "*"},
	{string(RoleStaff), ResourceUsers, ActionRead},
	{string(RoleStaff), ResourceCustomers, ActionRead},
	{string(RoleStaff), ResourceCustomers, ActionWrite},
	{string(RoleStaff), ResourcePurchases, ActionRead},
	{string(RoleStaff), ResourcePurchases, ActionWrite},
	{string(RoleStaff), ResourceVouchers, ActionRead},
	{string(RoleStaff), ResourceConfig, ActionRead},
}

// NewEnforcer builds the role based access policy: admins may do anything,
// staff may read everything and record customers and purchases.
func NewEnforcer() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	if _, err := e.AddPolicies(policies); err != nil {
		return nil, err
	}
	if _, err := e.AddGroupingPolicy(string(RoleAdmin), string(RoleStaff)); err != nil {
		return nil, err
	}

	return e, nil
}
