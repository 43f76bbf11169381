// Package reconcile implements the bank-transfer reconciliation core: it
// parses free-text transfer descriptions into booking references,
// classifies received amounts against what a booking expects, and commits
// the resulting state transition atomically.
package reconcile

import (
	"regexp"
	"strings"

	"github.com/lehoangnam/glamping-reconciliation/internal/model"
)

// Booking reference prefixes.  Camping and glamping references share the
// same shape (two letters plus exactly eight digits) but live in disjoint
// namespaces.
const (
	PrefixCamping  = "CP"
	PrefixGlamping = "GH"
)

var (
	// balancePattern matches a glamping reference tagged as a balance
	// payment, e.g. "GH25000002_balance".  Checked before the plain
	// reference pattern so a balance transfer is never misread as a fresh
	// deposit.
	balancePattern = regexp.MustCompile(`(?i)(GH[0-9]{8})_BALANCE`)

	// referencePattern matches a bare camping or glamping reference.  Bank
	// descriptions are uncontrolled text, so the match may appear anywhere
	// in the string.
	referencePattern = regexp.MustCompile(`(?i)(CP|GH)([0-9]{8})`)
)

// MatchCandidate is the result of scanning a transfer description: the
// booking reference it names, which namespace that reference belongs to,
// and whether the sender tagged the transfer as a balance payment.
type MatchCandidate struct {
	Reference string
	Type      model.BookingType
	IsBalance bool
}

// ExtractReference scans a free-text bank transfer description for a
// booking reference.  The balance form "GH########_balance" takes
// precedence over the plain form "(CP|GH)########"; both are
// case-insensitive and the returned reference is upper-cased.  A reference
// is only accepted when its digit run is exactly eight digits long, so
// unrelated numeric content (phone numbers, bank codes) cannot produce a
// false match.  Returns nil when no reference is found.
func ExtractReference(description string) *MatchCandidate {
	if m := balancePattern.FindStringSubmatch(description); m != nil {
		return &MatchCandidate{
			Reference: strings.ToUpper(m[1]),
			Type:      model.BookingTypeGlamping,
			IsBalance: true,
		}
	}
	for _, loc := range referencePattern.FindAllStringSubmatchIndex(description, -1) {
		// loc[0]:loc[1] is the whole match; reject it when another digit
		// follows, which would mean the description carries a longer
		// number that merely starts like a reference.
		end := loc[1]
		if end < len(description) && description[end] >= '0' && description[end] <= '9' {
			continue
		}
		ref := strings.ToUpper(description[loc[0]:end])
		kind := model.BookingTypeCamping
		if strings.HasPrefix(ref, PrefixGlamping) {
			kind = model.BookingTypeGlamping
		}
		return &MatchCandidate{Reference: ref, Type: kind}
	}
	return nil
}
