package sessions

import (
	"strings"

	errs "github.com/jrsteele09/go-session-watcher/internal/errors"
)

// Landing routes per role.
const (
	RouteAdmin   = "/admin"
	RouteTeacher = "/docentes"
	RouteStudent = "/estudiante"
)

var routesByRole = map[string]string{
	"administrador": RouteAdmin,
	"admin":         RouteAdmin,
	"docente":       RouteTeacher,
	"estudiante":    RouteStudent,
}

// RouteForRole returns the view a user with role lands on after login.
func RouteForRole(role string) (string, error) {
	route, ok := routesByRole[strings.ToLower(strings.TrimSpace(role))]
	if !ok {
		return "", errs.Wrapf(errs.ErrUnknownRole, "role %q", role)
	}
	return route, nil
}
