package calculator

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/liauzhanyi/splitwiser/internal/models"
	"github.com/liauzhanyi/splitwiser/internal/money"
)

func pct(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestFinalizeSplits(t *testing.T) {
	tests := []struct {
		name       string
		amount     string
		splitType  models.SplitType
		splits     []models.Split
		members    map[string]bool
		wantOwed   []string // per split, in order
		wantReason RejectReason
	}{
		{
			name:      "equal split of 100.00 among 3, first absorbs the extra cent",
			amount:    "100.00",
			splitType: models.SplitEqual,
			splits: []models.Split{
				{UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"},
			},
			wantOwed: []string{"33.34", "33.33", "33.33"},
		},
		{
			name:      "equal split divides evenly",
			amount:    "90.00",
			splitType: models.SplitEqual,
			splits: []models.Split{
				{UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"},
			},
			wantOwed: []string{"30.00", "30.00", "30.00"},
		},
		{
			name:      "equal split two extra cents",
			amount:    "100.01",
			splitType: models.SplitEqual,
			splits: []models.Split{
				{UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"},
			},
			wantOwed: []string{"33.34", "33.34", "33.33"},
		},
		{
			name:      "exact split accepted as given",
			amount:    "50.00",
			splitType: models.SplitExact,
			splits: []models.Split{
				{UserID: "alice", OwedAmount: money.MustParse("30.00")},
				{UserID: "bob", OwedAmount: money.MustParse("20.00")},
			},
			wantOwed: []string{"30.00", "20.00"},
		},
		{
			name:      "exact split one cent short is normalized",
			amount:    "50.00",
			splitType: models.SplitExact,
			splits: []models.Split{
				{UserID: "alice", OwedAmount: money.MustParse("29.99")},
				{UserID: "bob", OwedAmount: money.MustParse("20.00")},
			},
			wantOwed: []string{"30.00", "20.00"},
		},
		{
			name:      "exact split two cents off is rejected",
			amount:    "50.00",
			splitType: models.SplitExact,
			splits: []models.Split{
				{UserID: "alice", OwedAmount: money.MustParse("29.98")},
				{UserID: "bob", OwedAmount: money.MustParse("20.00")},
			},
			wantReason: ReasonAmountMismatch,
		},
		{
			name:      "percentage 60/40 of 50.01, first absorbs residual",
			amount:    "50.01",
			splitType: models.SplitPercentage,
			splits: []models.Split{
				{UserID: "alice", Percentage: pct("60")},
				{UserID: "bob", Percentage: pct("40")},
			},
			wantOwed: []string{"30.01", "20.00"},
		},
		{
			name:      "percentage thirds of 100.00",
			amount:    "100.00",
			splitType: models.SplitPercentage,
			splits: []models.Split{
				{UserID: "alice", Percentage: pct("33.33")},
				{UserID: "bob", Percentage: pct("33.33")},
				{UserID: "carol", Percentage: pct("33.34")},
			},
			wantOwed: []string{"33.34", "33.33", "33.33"},
		},
		{
			name:      "percentages summing to 99.99 still produce an exact sum",
			amount:    "10000.00",
			splitType: models.SplitPercentage,
			splits: []models.Split{
				{UserID: "alice", Percentage: pct("49.99")},
				{UserID: "bob", Percentage: pct("50.00")},
			},
			wantOwed: []string{"4999.50", "5000.50"},
		},
		{
			name:      "percentages summing to 100.01 still produce an exact sum",
			amount:    "10000.00",
			splitType: models.SplitPercentage,
			splits: []models.Split{
				{UserID: "alice", Percentage: pct("50.01")},
				{UserID: "bob", Percentage: pct("50.00")},
			},
			wantOwed: []string{"5000.50", "4999.50"},
		},
		{
			name:      "percentages not summing to 100 rejected",
			amount:    "100.00",
			splitType: models.SplitPercentage,
			splits: []models.Split{
				{UserID: "alice", Percentage: pct("60")},
				{UserID: "bob", Percentage: pct("30")},
			},
			wantReason: ReasonPercentageMismatch,
		},
		{
			name:       "empty split set rejected",
			amount:     "10.00",
			splitType:  models.SplitEqual,
			splits:     nil,
			wantReason: ReasonEmptySplitSet,
		},
		{
			name:      "duplicate participant rejected",
			amount:    "10.00",
			splitType: models.SplitEqual,
			splits: []models.Split{
				{UserID: "alice"}, {UserID: "alice"},
			},
			wantReason: ReasonDuplicateParticipant,
		},
		{
			name:      "non-member participant rejected",
			amount:    "10.00",
			splitType: models.SplitEqual,
			splits: []models.Split{
				{UserID: "alice"}, {UserID: "mallory"},
			},
			members:    map[string]bool{"alice": true, "bob": true},
			wantReason: ReasonNonMemberParticipant,
		},
		{
			name:      "negative owed amount rejected",
			amount:    "10.00",
			splitType: models.SplitExact,
			splits: []models.Split{
				{UserID: "alice", OwedAmount: money.FromCents(-100)},
				{UserID: "bob", OwedAmount: money.MustParse("11.00")},
			},
			wantReason: ReasonNegativeSplit,
		},
		{
			name:      "percentage above 100 rejected",
			amount:    "10.00",
			splitType: models.SplitPercentage,
			splits: []models.Split{
				{UserID: "alice", Percentage: pct("150")},
			},
			wantReason: ReasonNegativeSplit,
		},
		{
			name:      "unknown split type rejected",
			amount:    "10.00",
			splitType: models.SplitType("weighted"),
			splits: []models.Split{
				{UserID: "alice"},
			},
			wantReason: ReasonUnknownSplitType,
		},
		{
			name:      "zero amount rejected",
			amount:    "0.00",
			splitType: models.SplitEqual,
			splits: []models.Split{
				{UserID: "alice"},
			},
			wantReason: ReasonNonPositiveAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := money.MustParse(tt.amount)
			got, err := FinalizeSplits(amount, tt.splitType, tt.splits, tt.members)

			if tt.wantReason != "" {
				if err == nil {
					t.Fatalf("expected rejection %s, got splits %v", tt.wantReason, got)
				}
				if reason := ReasonOf(err); reason != tt.wantReason {
					t.Fatalf("rejection reason = %s, want %s (err: %v)", reason, tt.wantReason, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("FinalizeSplits failed: %v", err)
			}
			if len(got) != len(tt.wantOwed) {
				t.Fatalf("got %d splits, want %d", len(got), len(tt.wantOwed))
			}

			sum := money.Zero
			for i, split := range got {
				if split.OwedAmount.String() != tt.wantOwed[i] {
					t.Errorf("split[%d] (%s) owed = %s, want %s", i, split.UserID, split.OwedAmount, tt.wantOwed[i])
				}
				sum = sum.Add(split.OwedAmount)
			}
			// Finalized splits sum exactly, not just within tolerance.
			if !sum.Equal(amount) {
				t.Errorf("splits sum to %s, want exactly %s", sum, amount)
			}
		})
	}
}

func TestFinalizeSplitsDoesNotMutateInput(t *testing.T) {
	in := []models.Split{{UserID: "alice"}, {UserID: "bob"}}
	_, err := FinalizeSplits(money.MustParse("10.01"), models.SplitEqual, in, nil)
	if err != nil {
		t.Fatalf("FinalizeSplits failed: %v", err)
	}
	if !in[0].OwedAmount.IsZero() {
		t.Errorf("input split mutated: owed = %s", in[0].OwedAmount)
	}
}

func TestEqualSplitSumsExactlyForManyShapes(t *testing.T) {
	// The residual rule must produce an exact sum for any amount and any
	// participant count.
	for cents := int64(1); cents <= 500; cents += 7 {
		for n := 1; n <= 9; n++ {
			splits := make([]models.Split, n)
			for i := range splits {
				splits[i].UserID = string(rune('a' + i))
			}
			amount := money.FromCents(cents)
			got, err := FinalizeSplits(amount, models.SplitEqual, splits, nil)
			if err != nil {
				t.Fatalf("amount=%s n=%d: %v", amount, n, err)
			}
			sum := money.Zero
			for _, s := range got {
				sum = sum.Add(s.OwedAmount)
			}
			if !sum.Equal(amount) {
				t.Fatalf("amount=%s n=%d: splits sum to %s", amount, n, sum)
			}
			// No share may deviate from another by more than one cent.
			min, max := got[0].OwedAmount, got[0].OwedAmount
			for _, s := range got {
				if s.OwedAmount.LessThan(min) {
					min = s.OwedAmount
				}
				if max.LessThan(s.OwedAmount) {
					max = s.OwedAmount
				}
			}
			if max.Sub(min).Cents() > 1 {
				t.Fatalf("amount=%s n=%d: share spread %s..%s", amount, n, min, max)
			}
		}
	}
}
