// services/rental/internal/core/lease.go
package core

import (
	"fmt"
	"time"
)

// SigningParty identifies which side of a lease is signing.
type SigningParty string

const (
	PartyLandlord SigningParty = "landlord"
	PartyTenant   SigningParty = "tenant"
)

// ParseSigningParty validates a party name from a request.
func ParseSigningParty(s string) (SigningParty, error) {
	switch SigningParty(s) {
	case PartyLandlord, PartyTenant:
		return SigningParty(s), nil
	}
	return "", validationError("LEASE_002", "invalid signing party %q", s)
}

// IsTerminal reports whether the lease can no longer change.
func (s LeaseStatus) IsTerminal() bool {
	return s == LeaseTerminated || s == LeaseExpired
}

// LeaseStatusFor derives the status from the signature flags. Terminal
// statuses are never overwritten.
func LeaseStatusFor(l *LeaseAgreement) LeaseStatus {
	switch {
	case l.Status.IsTerminal():
		return l.Status
	case l.LandlordSigned && l.TenantSigned:
		return LeaseActive
	case l.LandlordSigned || l.TenantSigned:
		return LeasePendingSignature
	case l.Status == "":
		return LeaseDraft
	default:
		return l.Status
	}
}

// ApplySignature records a party's signature and recomputes the status.
// Signing twice keeps the original signature date.
func ApplySignature(l *LeaseAgreement, party SigningParty, at time.Time) error {
	if l.Status.IsTerminal() {
		return ErrLeaseTerminal
	}

	switch party {
	case PartyLandlord:
		if !l.LandlordSigned {
			l.LandlordSigned = true
			l.LandlordSignatureDate = &at
		}
	case PartyTenant:
		if !l.TenantSigned {
			l.TenantSigned = true
			l.TenantSignatureDate = &at
		}
	default:
		return fmt.Errorf("apply signature: %w", validationError("LEASE_002", "invalid signing party %q", party))
	}

	l.Status = LeaseStatusFor(l)
	return nil
}
