package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{"2025-03", Period{Year: 2025, Month: 3}, false},
		{"2025_11", Period{Year: 2025, Month: 11}, false},
		{" 2024-1 ", Period{Year: 2024, Month: 1}, false},
		{"2025-13", Period{}, true},
		{"2025-00", Period{}, true},
		{"2025", Period{}, true},
		{"-03", Period{}, true},
		{"abcd-03", Period{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePeriod(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPeriod_Formatting(t *testing.T) {
	t.Parallel()
	p := Period{Year: 2025, Month: 4}
	assert.Equal(t, "2025-04", p.String())
	assert.Equal(t, "2025_04", p.Key())
	assert.Equal(t, time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC), p.LastDay())
	assert.Equal(t, 29, Period{Year: 2024, Month: 2}.LastDay().Day())
}

func TestPeriod_NextPrevious(t *testing.T) {
	t.Parallel()
	dec := Period{Year: 2024, Month: 12}
	jan := Period{Year: 2025, Month: 1}
	assert.Equal(t, jan, dec.Next())
	assert.Equal(t, dec, jan.Previous())
	assert.True(t, dec.Before(jan))
	assert.False(t, jan.Before(jan))
	assert.Equal(t, 0, jan.Compare(jan))
	assert.Equal(t, 1, jan.Compare(dec))
}

func TestPeriodRange(t *testing.T) {
	t.Parallel()
	got := PeriodRange(Period{Year: 2024, Month: 11}, Period{Year: 2025, Month: 2})
	assert.Equal(t, []Period{
		{Year: 2024, Month: 11}, {Year: 2024, Month: 12},
		{Year: 2025, Month: 1}, {Year: 2025, Month: 2},
	}, got)
	assert.Nil(t, PeriodRange(Period{Year: 2025, Month: 2}, Period{Year: 2025, Month: 1}))
}

func TestPeriod_JSON(t *testing.T) {
	t.Parallel()
	b, err := json.Marshal(struct {
		P Period `json:"p"`
	}{Period{Year: 2025, Month: 6}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":"2025-06"}`, string(b))

	var back struct {
		P Period `json:"p"`
	}
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, Period{Year: 2025, Month: 6}, back.P)
}
