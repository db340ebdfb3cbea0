package access

import (
	"errors"
	"time"
)

var (
	ErrSiteNotFound  = errors.New("site not found")
	ErrSiteExists    = errors.New("site already exists")
	ErrGrantNotFound = errors.New("access grant not found")
	ErrInvalidSlug   = errors.New("site slug must be 1-48 lowercase letters, digits or underscores")
	ErrNoSiteAccess  = errors.New("no access to site")
	ErrUnknownRole   = errors.New("unknown role")
)

type Site struct {
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Grant gives a user a role at one site.
type Grant struct {
	UserID    string    `json:"user_id"`
	SiteSlug  string    `json:"site_slug"`
	Role      string    `json:"role"`
	GrantedBy string    `json:"granted_by,omitempty"`
	GrantedAt time.Time `json:"granted_at"`
}
