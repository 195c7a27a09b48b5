package access

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc/metadata"
)

const (
	HeaderCallerID    = "X-Caller-ID"
	HeaderCallerRoles = "X-Caller-Roles"

	metadataCallerID    = "x-caller-id"
	metadataCallerRoles = "x-caller-roles"
)

var (
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("caller identity is missing")
)

type Caller struct {
	ID    string
	Roles []string
	Admin bool
}

// VerifyAccess decides whether caller may act on a resource owned by ownerID.
// A nil ownerID means the caller is already scoped to its own resources.
func VerifyAccess(caller Caller, requireAdmin bool, ownerID *string) error {
	if requireAdmin {
		if caller.Admin {
			return nil
		}
		return ErrForbidden
	}
	if ownerID == nil {
		return nil
	}
	if caller.Admin || strings.EqualFold(strings.TrimSpace(caller.ID), strings.TrimSpace(*ownerID)) {
		return nil
	}
	return ErrForbidden
}

// ScopeOwner returns the owner filter a list query must apply for caller.
// Admins without an explicit owner get an empty filter (every owner).
func ScopeOwner(caller Caller, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		if err := VerifyAccess(caller, false, &requested); err != nil {
			return "", err
		}
		return requested, nil
	}
	if caller.Admin {
		return "", nil
	}
	return caller.ID, nil
}

type Resolver struct {
	adminRole string
}

func NewResolver(adminRole string) *Resolver {
	adminRole = strings.TrimSpace(adminRole)
	if adminRole == "" {
		adminRole = "admin"
	}
	return &Resolver{adminRole: adminRole}
}

func (r *Resolver) FromHeader(header http.Header) (Caller, error) {
	return r.build(header.Get(HeaderCallerID), header.Values(HeaderCallerRoles))
}

func (r *Resolver) FromMetadata(ctx context.Context) (Caller, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return Caller{}, ErrUnauthenticated
	}
	var id string
	if values := md.Get(metadataCallerID); len(values) > 0 {
		id = values[0]
	}
	return r.build(id, md.Get(metadataCallerRoles))
}

func (r *Resolver) build(id string, rawRoles []string) (Caller, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Caller{}, ErrUnauthenticated
	}

	caller := Caller{ID: id}
	for _, raw := range rawRoles {
		for _, role := range strings.Split(raw, ",") {
			role = strings.TrimSpace(role)
			if role == "" {
				continue
			}
			caller.Roles = append(caller.Roles, role)
			if strings.EqualFold(role, r.adminRole) {
				caller.Admin = true
			}
		}
	}
	return caller, nil
}
