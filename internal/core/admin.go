// services/rental/internal/core/admin.go
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const dashboardCacheKey = "admin:dashboard_stats"

// DashboardStats are the platform-wide counters shown to admins.
type DashboardStats struct {
	TotalUsers         int64                    `json:"total_users"`
	UsersByRole        map[Role]int64           `json:"users_by_role"`
	TotalProperties    int64                    `json:"total_properties"`
	PropertiesByStatus map[PropertyStatus]int64 `json:"properties_by_status"`
	TotalBookings      int64                    `json:"total_bookings"`
	BookingsByStatus   map[BookingStatus]int64  `json:"bookings_by_status"`
	ActiveTenants      int64                    `json:"active_tenants"`
	BookingRevenue     decimal.Decimal          `json:"booking_revenue"`
	CommissionRevenue  decimal.Decimal          `json:"commission_revenue"`
	GeneratedAt        time.Time                `json:"generated_at"`
}

// UserWithAuthData is a user row joined with its session data.
type UserWithAuthData struct {
	*User
	ActiveSessions int64 `json:"active_sessions"`
}

// --- Admin Service Implementation ---

type AdminService struct {
	store    Repository
	events   *EventDispatcher
	cache    Cache
	logger   *logrus.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

func NewAdminService(store Repository, events *EventDispatcher, cache Cache, logger *logrus.Logger, cacheTTL time.Duration, now func() time.Time) *AdminService {
	return &AdminService{
		store:    store,
		events:   events,
		cache:    cache,
		logger:   logger,
		cacheTTL: cacheTTL,
		now:      now,
	}
}

// DashboardStats aggregates platform counters. Revenue counts every booking
// that was not cancelled.
func (s *AdminService) DashboardStats(ctx context.Context, admin *Session) (*DashboardStats, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}

	var cached DashboardStats
	if cachedJSON(ctx, s.cache, dashboardCacheKey, &cached) {
		return &cached, nil
	}

	var (
		users         map[Role]int64
		properties    map[PropertyStatus]int64
		bookings      map[BookingStatus]int64
		activeTenants int64
		all           []*Booking
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if users, err = s.store.CountUsersByRole(gctx); err != nil {
			return fmt.Errorf("failed to count users: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if properties, err = s.store.CountPropertiesByStatus(gctx); err != nil {
			return fmt.Errorf("failed to count properties: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if bookings, err = s.store.CountBookingsByStatus(gctx); err != nil {
			return fmt.Errorf("failed to count bookings: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if activeTenants, err = s.store.CountTenantsByStatus(gctx, TenantActive); err != nil {
			return fmt.Errorf("failed to count tenants: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if all, err = s.store.ListBookings(gctx, BookingFilter{}); err != nil {
			return fmt.Errorf("failed to list bookings: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		UsersByRole:        users,
		PropertiesByStatus: properties,
		BookingsByStatus:   bookings,
		ActiveTenants:      activeTenants,
		BookingRevenue:     decimal.Zero,
		CommissionRevenue:  decimal.Zero,
		GeneratedAt:        s.now(),
	}
	for _, n := range users {
		stats.TotalUsers += n
	}
	for _, n := range properties {
		stats.TotalProperties += n
	}
	for _, n := range bookings {
		stats.TotalBookings += n
	}

	for _, b := range all {
		if b.Status == BookingCancelled {
			continue
		}
		stats.BookingRevenue = stats.BookingRevenue.Add(b.TotalAmount)
		stats.CommissionRevenue = stats.CommissionRevenue.Add(b.ServiceFee)
	}

	cacheJSON(ctx, s.cache, s.logger, dashboardCacheKey, stats, s.cacheTTL)
	return stats, nil
}

// ListUsersWithAuthData lists accounts with their sign-in data.
func (s *AdminService) ListUsersWithAuthData(ctx context.Context, admin *Session, role Role) ([]UserWithAuthData, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	sessions, err := s.store.CountActiveTokensByUser(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	out := make([]UserWithAuthData, 0, len(users))
	for _, u := range users {
		out = append(out, UserWithAuthData{User: u, ActiveSessions: sessions[u.ID]})
	}
	return out, nil
}

// GetUserWithAuthData returns one account with its sign-in data.
func (s *AdminService) GetUserWithAuthData(ctx context.Context, admin *Session, userID uuid.UUID) (*UserWithAuthData, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	sessions, err := s.store.CountActiveTokensByUser(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}
	return &UserWithAuthData{User: user, ActiveSessions: sessions[user.ID]}, nil
}

// DeleteUser removes an account and its sessions. Admins cannot delete
// themselves.
func (s *AdminService) DeleteUser(ctx context.Context, admin *Session, userID uuid.UUID) error {
	if err := requireAdmin(admin); err != nil {
		return err
	}
	if admin.UserID == userID {
		return validationError("ADMIN_001", "admins cannot delete their own account")
	}

	var event *OutboxEvent
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Repository) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := tx.DeleteUserAccessTokens(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete sessions: %w", err)
		}
		if err := tx.DeleteUser(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		if err := tx.CreateAuditLog(ctx, &AuditLog{
			AdminID:      admin.UserID,
			Action:       "delete_user",
			ResourceType: "user",
			ResourceID:   userID.String(),
			Before:       snapshot(user),
			IPAddress:    admin.IPAddress,
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		event, err = s.events.Record(ctx, tx, TopicUserDeleted, userID, map[string]interface{}{
			"user_id":  userID,
			"admin_id": admin.UserID,
		})
		return err
	})
	if err != nil {
		return err
	}
	s.events.Dispatch(ctx, event)
	evict(ctx, s.cache, s.logger, dashboardCacheKey)

	s.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"admin_id": admin.UserID,
	}).Info("User deleted")

	return nil
}

// LogAdminAction writes a free-form audit entry.
func (s *AdminService) LogAdminAction(ctx context.Context, admin *Session, action, resourceType, resourceID string, before, after interface{}) (*AuditLog, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	if action == "" {
		return nil, validationError("ADMIN_002", "action is required")
	}
	entry := &AuditLog{
		AdminID:      admin.UserID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Before:       snapshot(before),
		After:        snapshot(after),
		IPAddress:    admin.IPAddress,
	}
	if err := s.store.CreateAuditLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to write audit log: %w", err)
	}
	return entry, nil
}

// ListAuditLogs returns the most recent audit entries.
func (s *AdminService) ListAuditLogs(ctx context.Context, admin *Session, limit int) ([]*AuditLog, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	return s.store.ListAuditLogs(ctx, limit)
}
