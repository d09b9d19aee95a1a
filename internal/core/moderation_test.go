package core

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRejectionReason(t *testing.T) {
	reason, err := RejectionReason(RejectPoorQualityImages, "  blurry  ")
	require.NoError(t, err)
	assert.Equal(t, "Poor quality images: blurry", reason)

	reason, err = RejectionReason(RejectOther, "")
	require.NoError(t, err)
	assert.Equal(t, "Other", reason)

	_, err = RejectionReason("Too expensive", "")
	requireCode(t, err, "MODERATION_001")
}

func TestSubmitProperty(t *testing.T) {
	env := newTestEnv(t)
	_, host := env.createUser(t, RoleHost, "Host")
	_, guest := env.createUser(t, RoleGuest, "Guest")

	in := SubmitPropertyInput{Title: " Sea view studio ", City: "Zanzibar", MonthlyRent: dec("350000")}

	_, err := env.services.Moderation.SubmitProperty(env.ctx, guest, in)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.services.Moderation.SubmitProperty(env.ctx, host, SubmitPropertyInput{MonthlyRent: dec("1")})
	requireCode(t, err, "PROPERTY_001")

	_, err = env.services.Moderation.SubmitProperty(env.ctx, host, SubmitPropertyInput{Title: "Flat", MonthlyRent: dec("0")})
	requireCode(t, err, "PROPERTY_002")

	p, err := env.services.Moderation.SubmitProperty(env.ctx, host, in)
	require.NoError(t, err)
	assert.Equal(t, PropertyPending, p.Status)
	assert.Equal(t, host.UserID, p.HostID)
	assert.Equal(t, "Sea view studio", p.Title)
	assert.Equal(t, []string{TopicPropertySubmitted}, env.publisher.topics())

	_, err = env.services.Moderation.GetProperty(env.ctx, nil, p.ID)
	assert.ErrorIs(t, err, ErrPropertyNotFound)

	own, err := env.services.Moderation.GetProperty(env.ctx, host, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, own.ID)
}

func TestListPropertiesHidesUnapproved(t *testing.T) {
	env := newTestEnv(t)
	host, hostSession := env.createUser(t, RoleHost, "Host")
	_, admin := env.createUser(t, RoleAdmin, "Admin")
	env.createProperty(t, host.ID, "100000", PropertyApproved)
	env.createProperty(t, host.ID, "200000", PropertyPending)

	public, total, err := env.services.Moderation.ListProperties(env.ctx, nil, PropertyFilter{Status: PropertyPending})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, public, 1)
	assert.Equal(t, PropertyApproved, public[0].Status)

	hostID := host.ID
	mine, total, err := env.services.Moderation.ListProperties(env.ctx, hostSession, PropertyFilter{HostID: &hostID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, mine, 2)

	pending, _, err := env.services.Moderation.ListProperties(env.ctx, admin, PropertyFilter{Status: PropertyPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, PropertyPending, pending[0].Status)
}

func TestApprovePropertyWritesAuditLog(t *testing.T) {
	env := newTestEnv(t)
	host, hostSession := env.createUser(t, RoleHost, "Host")
	_, admin := env.createUser(t, RoleAdmin, "Admin")
	admin.IPAddress = "10.0.0.7"
	property := env.createProperty(t, host.ID, "450000", PropertyPending)

	_, err := env.services.Moderation.ApproveProperty(env.ctx, hostSession, property.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	approved, err := env.services.Moderation.ApproveProperty(env.ctx, admin, property.ID)
	require.NoError(t, err)
	assert.Equal(t, PropertyApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, admin.UserID, *approved.ReviewedBy)
	require.NotNil(t, approved.ReviewedAt)

	logs, err := env.services.Admin.ListAuditLogs(env.ctx, admin, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	entry := logs[0]
	assert.Equal(t, "approve_property", entry.Action)
	assert.Equal(t, "property", entry.ResourceType)
	assert.Equal(t, property.ID.String(), entry.ResourceID)
	assert.Equal(t, "10.0.0.7", entry.IPAddress)

	var before, after map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.Before, &before))
	require.NoError(t, json.Unmarshal(entry.After, &after))
	assert.Equal(t, "pending", before["status"])
	assert.Equal(t, "approved", after["status"])

	_, err = env.services.Moderation.ApproveProperty(env.ctx, admin, property.ID)
	assert.ErrorIs(t, err, ErrPropertyNotPending)

	_, err = env.services.Moderation.ApproveProperty(env.ctx, admin, uuid.New())
	assert.ErrorIs(t, err, ErrPropertyNotFound)
}

func TestRejectProperty(t *testing.T) {
	env := newTestEnv(t)
	host, _ := env.createUser(t, RoleHost, "Host")
	_, admin := env.createUser(t, RoleAdmin, "Admin")
	property := env.createProperty(t, host.ID, "450000", PropertyPending)

	_, err := env.services.Moderation.RejectProperty(env.ctx, admin, property.ID, "Ugly", "")
	requireCode(t, err, "MODERATION_001")

	rejected, err := env.services.Moderation.RejectProperty(env.ctx, admin, property.ID, RejectPoorQualityImages, "blurry")
	require.NoError(t, err)
	assert.Equal(t, PropertyRejected, rejected.Status)
	assert.Equal(t, "Poor quality images: blurry", rejected.RejectionReason)

	stored, err := env.store.GetProperty(env.ctx, property.ID)
	require.NoError(t, err)
	assert.Equal(t, PropertyRejected, stored.Status)
	assert.Contains(t, env.publisher.topics(), TopicPropertyRejected)
}

func TestBulkApproveReportsPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	host, _ := env.createUser(t, RoleHost, "Host")
	_, admin := env.createUser(t, RoleAdmin, "Admin")
	pending := env.createProperty(t, host.ID, "100000", PropertyPending)
	approved := env.createProperty(t, host.ID, "100000", PropertyApproved)
	missing := uuid.New()

	report, err := env.services.Moderation.BulkApprove(env.ctx, admin, []uuid.UUID{pending.ID, approved.ID, missing})
	require.NoError(t, err)
	assert.False(t, report.AllSucceeded())
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Results, 3)
	assert.True(t, report.Results[0].Success)
	assert.Equal(t, ErrPropertyNotPending.Error(), report.Results[1].Error)
	assert.Equal(t, ErrPropertyNotFound.Error(), report.Results[2].Error)

	stored, err := env.store.GetProperty(env.ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, PropertyApproved, stored.Status)
}

func TestBulkRejectValidatesCategoryFirst(t *testing.T) {
	env := newTestEnv(t)
	host, _ := env.createUser(t, RoleHost, "Host")
	_, admin := env.createUser(t, RoleAdmin, "Admin")
	first := env.createProperty(t, host.ID, "100000", PropertyPending)
	second := env.createProperty(t, host.ID, "100000", PropertyPending)
	ids := []uuid.UUID{first.ID, second.ID}

	_, err := env.services.Moderation.BulkReject(env.ctx, admin, ids, "Nope", "")
	requireCode(t, err, "MODERATION_001")

	stored, err := env.store.GetProperty(env.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, PropertyPending, stored.Status)

	report, err := env.services.Moderation.BulkReject(env.ctx, admin, ids, RejectDuplicateListing, "")
	require.NoError(t, err)
	assert.True(t, report.AllSucceeded())
	assert.Equal(t, 2, report.Succeeded)
}
