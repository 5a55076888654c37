package service

import (
	"crypto/subtle"
	"strings"

	"github.com/globetrotter/identity-service/internal/config"
	"github.com/globetrotter/identity-service/internal/security"
)

// AdminService gates the administrative path. The credential pair is a fixed
// configuration value in a namespace disjoint from the identity records;
// matching issues a role=admin token through the same signer.
type AdminService struct {
	cfg    *config.Config
	jwtMgr *security.JWTManager
}

type AdminIdentity struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func NewAdminService(cfg *config.Config, jwtMgr *security.JWTManager) *AdminService {
	return &AdminService{cfg: cfg, jwtMgr: jwtMgr}
}

func (s *AdminService) Login(username, password string) (string, *AdminIdentity, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)

	// Unset credentials disable the admin path entirely.
	if s.cfg.AdminUsername == "" || s.cfg.AdminPassword == "" {
		return "", nil, ErrInvalidCredentials
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.AdminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.AdminPassword)) == 1
	if !userOK || !passOK {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.jwtMgr.Sign("admin", username, "", security.RoleAdmin, s.cfg.AdminSessionTTL)
	if err != nil {
		return "", nil, err
	}
	return token, &AdminIdentity{Username: username, Role: security.RoleAdmin}, nil
}

// Authenticate verifies a bearer token for the admin gate. A valid token with
// a non-admin role is a role failure, distinct from an invalid token.
func (s *AdminService) Authenticate(raw string) (*AdminIdentity, error) {
	claims, err := s.jwtMgr.Parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.Role != security.RoleAdmin {
		return nil, ErrForbidden
	}
	return &AdminIdentity{Username: claims.Username, Role: claims.Role}, nil
}
