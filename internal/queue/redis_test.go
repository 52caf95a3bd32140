package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agroquote/quoter/internal/domain"
)

func TestDecodeMessage(t *testing.T) {
	quote := domain.Quote{
		ID:        "0192",
		Timestamp: time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC),
		Rate:      decimal.RequireFromString("6.96"),
		Lines: []domain.QuoteLine{{
			SKU:          "FIX-20L",
			Quantity:     decimal.NewFromInt(40),
			UnitPriceUSD: decimal.NewFromInt(50),
			SubtotalUSD:  decimal.NewFromInt(2000),
			PriceFound:   true,
		}},
		TotalUSD: decimal.NewFromInt(2000),
	}
	data, err := json.Marshal(quote)
	require.NoError(t, err)

	msg, err := decodeMessage(redis.XMessage{
		ID:     "1-0",
		Values: map[string]interface{}{"quote_id": quote.ID, "quote_data": string(data)},
	})
	require.NoError(t, err)
	assert.Equal(t, "1-0", msg.ID)
	assert.Equal(t, "0192", msg.Quote.ID)
	require.Len(t, msg.Quote.Lines, 1)
	assert.True(t, msg.Quote.Lines[0].SubtotalUSD.Equal(decimal.NewFromInt(2000)))
}

func TestDecodeMessage_Invalid(t *testing.T) {
	_, err := decodeMessage(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"init": "dummy"}})
	assert.Error(t, err)

	_, err = decodeMessage(redis.XMessage{ID: "2-0", Values: map[string]interface{}{"quote_data": "{"}})
	assert.Error(t, err)
}
