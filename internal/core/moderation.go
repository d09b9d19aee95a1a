// services/rental/internal/core/moderation.go
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"example.com/backstage/services/rental/internal/metrics"
)

// RejectionCategory is the closed set of reasons a listing can be rejected for.
type RejectionCategory string

const (
	RejectIncompleteInformation RejectionCategory = "Incomplete information"
	RejectPoorQualityImages     RejectionCategory = "Poor quality images"
	RejectPolicyViolation       RejectionCategory = "Policy violation"
	RejectMisleadingInformation RejectionCategory = "Misleading information"
	RejectDuplicateListing      RejectionCategory = "Duplicate listing"
	RejectInappropriateContent  RejectionCategory = "Inappropriate content"
	RejectOther                 RejectionCategory = "Other"
)

// RejectionCategories lists the categories in display order.
var RejectionCategories = []RejectionCategory{
	RejectIncompleteInformation,
	RejectPoorQualityImages,
	RejectPolicyViolation,
	RejectMisleadingInformation,
	RejectDuplicateListing,
	RejectInappropriateContent,
	RejectOther,
}

// RejectionReason validates the category and joins it with optional notes.
func RejectionReason(category RejectionCategory, notes string) (string, error) {
	valid := false
	for _, c := range RejectionCategories {
		if c == category {
			valid = true
			break
		}
	}
	if !valid {
		return "", validationError("MODERATION_001", "a rejection reason from the allowed categories is required")
	}

	if notes = strings.TrimSpace(notes); notes != "" {
		return string(category) + ": " + notes, nil
	}
	return string(category), nil
}

// SubmitPropertyInput is a host's new listing.
type SubmitPropertyInput struct {
	Title       string
	Description string
	City        string
	Address     string
	MonthlyRent decimal.Decimal
}

// BulkResult is the outcome of one item of a bulk action.
type BulkResult struct {
	PropertyID uuid.UUID `json:"property_id"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// BulkReport collects per-item outcomes of a bulk action.
type BulkReport struct {
	Results   []BulkResult `json:"results"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

func (r *BulkReport) add(id uuid.UUID, err error) {
	result := BulkResult{PropertyID: id, Success: err == nil}
	if err != nil {
		result.Error = err.Error()
		r.Failed++
	} else {
		r.Succeeded++
	}
	r.Results = append(r.Results, result)
}

// AllSucceeded reports whether every item went through.
func (r *BulkReport) AllSucceeded() bool {
	return r.Failed == 0
}

// --- Moderation Service Implementation ---

type ModerationService struct {
	store  Repository
	events *EventDispatcher
	cache  Cache
	logger *logrus.Logger
	now    func() time.Time
}

func NewModerationService(store Repository, events *EventDispatcher, cache Cache, logger *logrus.Logger, now func() time.Time) *ModerationService {
	return &ModerationService{
		store:  store,
		events: events,
		cache:  cache,
		logger: logger,
		now:    now,
	}
}

// SubmitProperty creates a listing awaiting review.
func (s *ModerationService) SubmitProperty(ctx context.Context, actor *Session, in SubmitPropertyInput) (*Property, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	if actor.Role != RoleHost && actor.Role != RoleAdmin {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, validationError("PROPERTY_001", "title is required")
	}
	if !in.MonthlyRent.IsPositive() {
		return nil, validationError("PROPERTY_002", "monthly rent must be greater than zero")
	}

	property := &Property{
		HostID:      actor.UserID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		City:        strings.TrimSpace(in.City),
		Address:     strings.TrimSpace(in.Address),
		MonthlyRent: in.MonthlyRent,
		Status:      PropertyPending,
	}

	var event *OutboxEvent
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.CreateProperty(ctx, property); err != nil {
			return fmt.Errorf("failed to create property: %w", err)
		}
		var err error
		event, err = s.events.Record(ctx, tx, TopicPropertySubmitted, property.ID, map[string]interface{}{
			"property_id": property.ID,
			"host_id":     property.HostID,
			"title":       property.Title,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.events.Dispatch(ctx, event)
	evict(ctx, s.cache, s.logger, dashboardCacheKey)

	s.logger.WithFields(logrus.Fields{
		"property_id": property.ID,
		"host_id":     property.HostID,
	}).Info("Property submitted for review")

	return property, nil
}

// GetProperty returns a listing. Unapproved listings are visible only to
// their host and admins.
func (s *ModerationService) GetProperty(ctx context.Context, actor *Session, id uuid.UUID) (*Property, error) {
	property, err := s.store.GetProperty(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}
	if property.Status != PropertyApproved && !actor.owns(property.HostID) {
		return nil, ErrPropertyNotFound
	}
	return property, nil
}

// ListProperties lists listings. Non-admins only see approved listings
// unless they ask for their own.
func (s *ModerationService) ListProperties(ctx context.Context, actor *Session, filter PropertyFilter) ([]*Property, int64, error) {
	ownListings := actor != nil && filter.HostID != nil && *filter.HostID == actor.UserID
	if !actor.IsAdmin() && !ownListings {
		filter.Status = PropertyApproved
	}
	return s.store.ListProperties(ctx, filter)
}

// ApproveProperty moves a pending listing to approved.
func (s *ModerationService) ApproveProperty(ctx context.Context, admin *Session, propertyID uuid.UUID) (*Property, error) {
	property, err := s.decide(ctx, admin, propertyID, "approve_property", TopicPropertyApproved, func(p *Property) {
		p.Status = PropertyApproved
		p.RejectionReason = ""
	})
	metrics.ModerationDecisions.WithLabelValues("approve", metrics.Result(err)).Inc()
	return property, err
}

// RejectProperty moves a pending listing to rejected with a categorised reason.
func (s *ModerationService) RejectProperty(ctx context.Context, admin *Session, propertyID uuid.UUID, category RejectionCategory, notes string) (*Property, error) {
	reason, err := RejectionReason(category, notes)
	if err != nil {
		return nil, err
	}
	property, err := s.decide(ctx, admin, propertyID, "reject_property", TopicPropertyRejected, func(p *Property) {
		p.Status = PropertyRejected
		p.RejectionReason = reason
	})
	metrics.ModerationDecisions.WithLabelValues("reject", metrics.Result(err)).Inc()
	return property, err
}

// BulkApprove approves each listing in turn, one at a time. A failure on
// one item does not stop the rest.
func (s *ModerationService) BulkApprove(ctx context.Context, admin *Session, ids []uuid.UUID) (*BulkReport, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	report := &BulkReport{}
	for _, id := range ids {
		_, err := s.ApproveProperty(ctx, admin, id)
		report.add(id, err)
	}
	s.logBulk("approve", report)
	return report, nil
}

// BulkReject rejects each listing in turn with the same reason.
func (s *ModerationService) BulkReject(ctx context.Context, admin *Session, ids []uuid.UUID, category RejectionCategory, notes string) (*BulkReport, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	if _, err := RejectionReason(category, notes); err != nil {
		return nil, err
	}
	report := &BulkReport{}
	for _, id := range ids {
		_, err := s.RejectProperty(ctx, admin, id, category, notes)
		report.add(id, err)
	}
	s.logBulk("reject", report)
	return report, nil
}

func (s *ModerationService) logBulk(action string, report *BulkReport) {
	entry := s.logger.WithFields(logrus.Fields{
		"action":    action,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	})
	if report.AllSucceeded() {
		entry.Info("Bulk moderation finished")
		return
	}
	entry.Warn("Bulk moderation finished with failures")
}

func (s *ModerationService) decide(ctx context.Context, admin *Session, propertyID uuid.UUID, action, topic string, apply func(*Property)) (*Property, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}

	var (
		property *Property
		event    *OutboxEvent
	)
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Repository) error {
		p, err := tx.GetProperty(ctx, propertyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPropertyNotFound
			}
			return err
		}
		if p.Status != PropertyPending {
			return ErrPropertyNotPending
		}

		before := snapshot(p)
		now := s.now()
		reviewer := admin.UserID
		apply(p)
		p.ReviewedBy = &reviewer
		p.ReviewedAt = &now
		if err := tx.UpdateProperty(ctx, p); err != nil {
			return fmt.Errorf("failed to update property: %w", err)
		}

		if err := tx.CreateAuditLog(ctx, &AuditLog{
			AdminID:      admin.UserID,
			Action:       action,
			ResourceType: "property",
			ResourceID:   p.ID.String(),
			Before:       before,
			After:        snapshot(p),
			IPAddress:    admin.IPAddress,
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		event, err = s.events.Record(ctx, tx, topic, p.ID, map[string]interface{}{
			"property_id":      p.ID,
			"host_id":          p.HostID,
			"status":           p.Status,
			"rejection_reason": p.RejectionReason,
			"reviewed_by":      reviewer,
		})
		property = p
		return err
	})
	if err != nil {
		return nil, err
	}
	s.events.Dispatch(ctx, event)
	// Dashboard counts properties by status.
	evict(ctx, s.cache, s.logger, dashboardCacheKey)

	s.logger.WithFields(logrus.Fields{
		"property_id": property.ID,
		"status":      property.Status,
		"admin_id":    admin.UserID,
	}).Info("Property moderated")

	return property, nil
}

func snapshot(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
