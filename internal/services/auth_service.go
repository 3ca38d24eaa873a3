// auth_service.go
//
// Hierarchical settings service for jam-build applications
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of settingsdb.
// settingsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// settingsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with settingsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package services

import (
	"fmt"
	"sync"

	authorizer "github.com/localnerve/authorizer-go"
	"github.com/localnerve/settingsdb/internal/config"
	"github.com/localnerve/settingsdb/internal/utils"
	"go.uber.org/zap"
)

// SessionUser is the principal behind a validated session.
type SessionUser struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// AuthService validates authorizer sessions. The client is created on first
// use, with the origin of the first request as redirect URL.
type AuthService struct {
	cfg *config.Config
	log *zap.Logger

	once    sync.Once
	client  *authorizer.AuthorizerClient
	initErr error
}

// NewAuthService creates an uninitialized service.
func NewAuthService(cfg *config.Config, log *zap.Logger) *AuthService {
	return &AuthService{cfg: cfg, log: log}
}

// Initialized returns true if the Authorizer client is initialized
func (a *AuthService) Initialized() bool {
	return a.client != nil
}

func (a *AuthService) init(origin string) error {
	a.once.Do(func() {
		// Ping the Authorizer service first
		if err := utils.PingAuthorizer(a.cfg.AuthzURL); err != nil {
			a.initErr = fmt.Errorf("authorizer ping failed: %w", err)
			return
		}

		a.log.Info("initializing authorizer",
			zap.String("url", a.cfg.AuthzURL), zap.String("clientID", a.cfg.AuthzClientID),
			zap.String("redirectURL", origin))

		client, err := authorizer.NewAuthorizerClient(a.cfg.AuthzClientID, a.cfg.AuthzURL, origin, nil)
		if err != nil {
			a.initErr = fmt.Errorf("failed to create authorizer client: %w", err)
			return
		}
		a.client = client
	})
	return a.initErr
}

// ValidateSession validates a session cookie and returns its user.
func (a *AuthService) ValidateSession(origin, cookie string) (*SessionUser, error) {
	if err := a.init(origin); err != nil {
		return nil, err
	}

	res, err := a.client.ValidateSession(&authorizer.ValidateSessionInput{
		Cookie: cookie,
	})
	if err != nil {
		return nil, fmt.Errorf("session validation failed: %w", err)
	}
	if res == nil || !res.IsValid || res.User == nil {
		return nil, fmt.Errorf("session is not valid")
	}

	user := &SessionUser{ID: res.User.ID, Email: res.User.Email}
	for _, role := range res.User.Roles {
		if role != nil {
			user.Roles = append(user.Roles, *role)
		}
	}
	return user, nil
}
