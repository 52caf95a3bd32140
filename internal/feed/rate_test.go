package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"agroquote/quoter/internal/domain"
)

func withRatios(ratios ...string) []domain.PriceRecord {
	records := make([]domain.PriceRecord, 0, len(ratios))
	for _, r := range ratios {
		records = append(records, domain.PriceRecord{
			PriceUSD:   dec("10"),
			PriceLocal: dec("10").Mul(dec(r)),
		})
	}
	return records
}

func TestInferRate(t *testing.T) {
	tests := []struct {
		name     string
		records  []domain.PriceRecord
		want     string
		inferred bool
	}{
		{"even count averages middle pair", withRatios("4", "2"), "3", true},
		{"odd count takes middle", withRatios("6", "2", "4"), "4", true},
		{"single ratio", withRatios("6.96"), "6.96", true},
		{"no records", nil, "6.96", false},
		{
			"records missing one side are ignored",
			[]domain.PriceRecord{
				{PriceUSD: dec("10")},
				{PriceLocal: dec("70")},
			},
			"6.96",
			false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, inferred := InferRate(tc.records, defaultRate)
			assert.Equal(t, tc.inferred, inferred)
			assert.True(t, got.Equal(dec(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}
