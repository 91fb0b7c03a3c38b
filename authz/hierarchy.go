package authz

import "github.com/nrudenko/authcore/model"

// Permission identifies a single grantable action.
type Permission string

// Permission catalog.
const (
	PermContentRead    Permission = "content.read"
	PermContentWrite   Permission = "content.write"
	PermContentPublish Permission = "content.publish"
	PermUsersManage    Permission = "users.manage"
	PermBillingManage  Permission = "billing.manage"
)

// roleParents lists the roles each role directly subsumes.
var roleParents = map[model.Role][]model.Role{
	model.RoleAdmin:   {model.RoleManager},
	model.RoleManager: {model.RoleEditor},
	model.RoleEditor:  {model.RoleViewer},
	model.RoleViewer:  nil,
}

// rolePerms lists permissions granted directly by each role. Effective
// permissions are resolved through the role closure.
var rolePerms = map[model.Role][]Permission{
	model.RoleAdmin:   {PermUsersManage, PermBillingManage},
	model.RoleManager: {PermContentPublish},
	model.RoleEditor:  {PermContentWrite},
	model.RoleViewer:  {PermContentRead},
}

// roleClosure is the reflexive-transitive closure of roleParents, computed
// once at definition time. Every role subsumes at least itself.
var roleClosure = buildClosure(roleParents)

func buildClosure(direct map[model.Role][]model.Role) map[model.Role]map[model.Role]struct{} {
	var expand func(r model.Role, into map[model.Role]struct{})
	expand = func(r model.Role, into map[model.Role]struct{}) {
		if _, seen := into[r]; seen {
			return
		}
		into[r] = struct{}{}
		for _, p := range direct[r] {
			expand(p, into)
		}
	}
	closure := make(map[model.Role]map[model.Role]struct{}, len(direct))
	for r := range direct {
		set := make(map[model.Role]struct{})
		expand(r, set)
		closure[r] = set
	}
	return closure
}

// Subsumes reports whether holding `held` grants `wanted`.
func Subsumes(held, wanted model.Role) bool {
	_, ok := roleClosure[held][wanted]
	return ok
}
