package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/dayboard/pkg/models"
)

func TestParseDate(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// 21:00 EST on 2024-03-01
	now := time.Date(2024, 3, 2, 2, 0, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2024-01-15", want: "2024-01-15"},
		{in: "0d", want: "2024-03-01"},
		{in: "7d", want: "2024-02-23"},
		{in: "30d", want: "2024-01-31"},
		{in: "d", wantErr: true},
		{in: "-3d", wantErr: true},
		{in: "01/15/2024", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseDate(tt.in, now, loc)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDetail(t *testing.T) {
	vol := 1234567.0
	secs := 27000
	assert.Equal(t, "1,234,567 vol", detail(models.MarketSnapshot{Volume: &vol}))
	assert.Equal(t, "-", detail(models.MarketSnapshot{}))
	assert.Equal(t, "72°F max", detail(models.WeatherSnapshot{FeelsLikeMaxF: 71.6}))
	assert.Equal(t, "7h30m0s slept", detail(models.BiometricSnapshot{TotalSleepSeconds: &secs}))
}
