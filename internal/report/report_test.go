package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReservations(t *testing.T) {
	rows := []Row{{
		Code:         "RES-AB12C",
		Status:       "Confirmed",
		Guest:        "Ada Lovelace",
		Email:        "ada@example.com",
		Organization: "Northwind Lodges",
		Resources:    "Lake Cabin",
		StartDate:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		Nights:       2,
		Total:        decimal.RequireFromString("200.50"),
		Currency:     "USD",
		Source:       "Web",
		CreatedAt:    time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC),
	}}

	data, err := Reservations(rows)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, headers, got[0])
	assert.Equal(t, "RES-AB12C", got[1][0])
	assert.Equal(t, "2025-03-01", got[1][6])
	assert.Equal(t, "2", got[1][8])
	assert.Equal(t, "2025-01-02T10:00:00Z", got[1][12])

	raw, err := f.GetCellValue(sheetName, "J2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "200.5", raw)
}

func TestReservationsEmpty(t *testing.T) {
	data, err := Reservations(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, headers, got[0])
}
