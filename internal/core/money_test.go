package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1234", 123400, true},
		{"1234,50", 123450, true},
		{"1234,5", 123450, true},
		{"1.234,50", 123450, true},
		{"12.345,67", 1234567, true},
		{"  1234,50  ", 123450, true},
		{"0", 0, true},
		{"0,00", 0, true},
		{"1,005", 101, true}, // half-up rounding
		{"5000 kr", 500000, true},
		{"", 0, false},
		{"abc", 0, false},
		{"12,34,56", 0, false},
		{"-100,00", 0, false},
		{"+5", 0, false},
		{",", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if !tc.ok {
			assert.Error(t, err, "%q", tc.in)
			continue
		}
		if assert.NoError(t, err, "%q", tc.in) {
			assert.Equal(t, tc.out, got.Cents, "%q", tc.in)
		}
	}
}

func TestFormatKroner(t *testing.T) {
	cases := []struct {
		cents int64
		out   string
	}{
		{0, "0,00 kr"},
		{5, "0,05 kr"},
		{123450, "1.234,50 kr"},
		{100000, "1.000,00 kr"},
		{100000000, "1.000.000,00 kr"},
		{-250000, "-2.500,00 kr"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.out, FormatKroner(Money{Cents: tc.cents}), "%d", tc.cents)
	}
}

func TestFormatWholeKroner(t *testing.T) {
	cases := []struct {
		cents int64
		out   string
	}{
		{0, "0 kr"},
		{4949, "49 kr"},
		{4950, "50 kr"},
		{5500000, "55.000 kr"},
		{-123450, "-1.235 kr"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.out, FormatWholeKroner(Money{Cents: tc.cents}), "%d", tc.cents)
	}
}

func TestFormatInputRoundTrips(t *testing.T) {
	m := Money{Cents: 1234567}
	require.Equal(t, "12345,67", FormatInput(m))

	back, err := ParseAmount(FormatInput(m))
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestMoneyFromDecimalRoundsHalfUp(t *testing.T) {
	assert.Equal(t, int64(3334), MoneyFromDecimal(decimal.RequireFromString("33.335")).Cents)
	assert.Equal(t, int64(3333), MoneyFromDecimal(decimal.RequireFromString("33.3349")).Cents)
}
