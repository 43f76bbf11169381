package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lehoangnam/glamping-reconciliation/internal/model"
)

func TestExtractReference(t *testing.T) {
	cases := []struct {
		name string
		desc string
		want *MatchCandidate
	}{
		{
			name: "plain glamping reference",
			desc: "CK chuyen tien GH25000002 thanh toan",
			want: &MatchCandidate{Reference: "GH25000002", Type: model.BookingTypeGlamping},
		},
		{
			name: "plain camping reference",
			desc: "CP25000417 dat cho",
			want: &MatchCandidate{Reference: "CP25000417", Type: model.BookingTypeCamping},
		},
		{
			name: "lowercase reference is upper-cased",
			desc: "thanh toan gh25000002",
			want: &MatchCandidate{Reference: "GH25000002", Type: model.BookingTypeGlamping},
		},
		{
			name: "balance tag wins over plain reference",
			desc: "IB GH25000002_balance DEPOSIT",
			want: &MatchCandidate{Reference: "GH25000002", Type: model.BookingTypeGlamping, IsBalance: true},
		},
		{
			name: "balance tag case-insensitive",
			desc: "gh25000002_BALANCE",
			want: &MatchCandidate{Reference: "GH25000002", Type: model.BookingTypeGlamping, IsBalance: true},
		},
		{
			name: "nine digit run does not match",
			desc: "GH250000029 thanh toan",
			want: nil,
		},
		{
			name: "seven digits do not match",
			desc: "GH2500000",
			want: nil,
		},
		{
			name: "reference embedded in bank noise",
			desc: "MBVCB.1234567890.GH25000002.CT tu 0071000xxxx",
			want: &MatchCandidate{Reference: "GH25000002", Type: model.BookingTypeGlamping},
		},
		{
			name: "longer number later in string is skipped",
			desc: "GH123456789 then CP25000417 ok",
			want: &MatchCandidate{Reference: "CP25000417", Type: model.BookingTypeCamping},
		},
		{
			name: "no reference at all",
			desc: "chuyen tien an trua",
			want: nil,
		},
		{
			name: "empty description",
			desc: "",
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractReference(tc.desc)
			if tc.want == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, *tc.want, *got)
		})
	}
}
