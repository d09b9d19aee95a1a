package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplySignature(t *testing.T) {
	l := &LeaseAgreement{Status: LeaseDraft}
	first := day(2024, 1, 2)

	require.NoError(t, ApplySignature(l, PartyLandlord, first))
	assert.Equal(t, LeasePendingSignature, l.Status)
	assert.True(t, l.LandlordSigned)
	assert.Equal(t, first, *l.LandlordSignatureDate)

	require.NoError(t, ApplySignature(l, PartyLandlord, day(2024, 1, 5)))
	assert.Equal(t, first, *l.LandlordSignatureDate, "re-signing keeps the original date")

	require.NoError(t, ApplySignature(l, PartyTenant, day(2024, 1, 6)))
	assert.Equal(t, LeaseActive, l.Status)
	assert.True(t, l.TenantSigned)
}

func TestApplySignatureTenantFirst(t *testing.T) {
	l := &LeaseAgreement{Status: LeaseDraft}
	require.NoError(t, ApplySignature(l, PartyTenant, day(2024, 1, 2)))
	assert.Equal(t, LeasePendingSignature, l.Status)
}

func TestApplySignatureOnTerminalLease(t *testing.T) {
	for _, status := range []LeaseStatus{LeaseTerminated, LeaseExpired} {
		l := &LeaseAgreement{Status: status}
		assert.ErrorIs(t, ApplySignature(l, PartyLandlord, day(2024, 1, 2)), ErrLeaseTerminal)
		assert.False(t, l.LandlordSigned)
		assert.Equal(t, status, l.Status)
	}
}

func TestLeaseStatusForKeepsTerminal(t *testing.T) {
	l := &LeaseAgreement{Status: LeaseTerminated, LandlordSigned: true, TenantSigned: true}
	assert.Equal(t, LeaseTerminated, LeaseStatusFor(l))

	assert.Equal(t, LeaseDraft, LeaseStatusFor(&LeaseAgreement{}))
}

func TestParseSigningParty(t *testing.T) {
	party, err := ParseSigningParty("tenant")
	require.NoError(t, err)
	assert.Equal(t, PartyTenant, party)

	_, err = ParseSigningParty("witness")
	var be BusinessError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "LEASE_002", be.Code)
}
