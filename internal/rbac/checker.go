package rbac

import "strings"

type grants struct {
	exact    map[string]struct{}
	prefixes []string // from "family:*" grants; "" matches everything
}

func (g grants) allows(perm string) bool {
	if _, ok := g.exact[perm]; ok {
		return true
	}
	for _, p := range g.prefixes {
		if strings.HasPrefix(perm, p) {
			return true
		}
	}
	return false
}

// Checker answers permission questions against a fixed role policy.
type Checker struct {
	roles map[string]grants
}

// NewChecker compiles policy; nil means RolePermissions.
func NewChecker(policy map[string][]string) *Checker {
	if policy == nil {
		policy = RolePermissions
	}
	c := &Checker{roles: make(map[string]grants, len(policy))}
	for role, perms := range policy {
		g := grants{exact: map[string]struct{}{}}
		for _, p := range perms {
			if strings.HasSuffix(p, "*") {
				g.prefixes = append(g.prefixes, strings.TrimSuffix(p, "*"))
				continue
			}
			g.exact[p] = struct{}{}
		}
		c.roles[role] = g
	}
	return c
}

func (c *Checker) Has(role, perm string) bool {
	g, ok := c.roles[role]
	return ok && g.allows(perm)
}

// Any is true when role holds at least one of perms.
func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}
