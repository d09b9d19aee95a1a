// services/rental/internal/core/registry.go
package core

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Settings are the business rules read from configuration.
type Settings struct {
	CommissionRate         float64
	CancellationWindowDays int
	Tenancy                TenancySettings
	TokenTTL               time.Duration
	BcryptCost             int
}

// Dependencies wires the services to their infrastructure. Cache and
// Publisher may be nil.
type Dependencies struct {
	Store     Repository
	Cache     Cache
	Publisher EventPublisher
	Logger    *logrus.Logger
	Settings  Settings
	Now       func() time.Time
}

// ServiceRegistry holds all domain services
type ServiceRegistry struct {
	Authentication *AuthenticationService
	Tenancy        *TenancyService
	Bookings       *BookingService
	Moderation     *ModerationService
	Admin          *AdminService
	Events         *EventDispatcher
}

func NewServiceRegistry(deps Dependencies) *ServiceRegistry {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	events := NewEventDispatcher(deps.Store, deps.Publisher, deps.Logger, now)
	settings := deps.Settings

	return &ServiceRegistry{
		Authentication: NewAuthenticationService(deps.Store, deps.Cache, deps.Logger, settings.TokenTTL, settings.BcryptCost, now),
		Tenancy:        NewTenancyService(deps.Store, events, deps.Cache, deps.Logger, settings.Tenancy, now),
		Bookings:       NewBookingService(deps.Store, events, deps.Logger, settings.CommissionRate, settings.CancellationWindowDays, now),
		Moderation:     NewModerationService(deps.Store, events, deps.Cache, deps.Logger, now),
		Admin:          NewAdminService(deps.Store, events, deps.Cache, deps.Logger, settings.Tenancy.StatsCacheTTL, now),
		Events:         events,
	}
}
