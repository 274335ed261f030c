package dataset

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidColumns(t *testing.T) {
	_, err := New(NewNumericColumn("a", []float64{1, 2}), NewNumericColumn("a", []float64{1, 2}))
	assert.ErrorIs(t, err, ErrDuplicateColumn)

	_, err = New(NewNumericColumn("a", []float64{1, 2}), NewCategoricalColumn("b", []string{"x"}))
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestReplaceKeepsPositionAndOriginal(t *testing.T) {
	ds, err := New(
		NewNumericColumn("a", []float64{1, 2}),
		NewCategoricalColumn("c", []string{"x", "y"}),
		NewNumericColumn("z", []float64{3, 4}),
	)
	require.NoError(t, err)

	out, err := ds.Replace("c",
		NewBooleanColumn("c_x", []float64{1, 0}),
		NewBooleanColumn("c_y", []float64{0, 1}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c_x", "c_y", "z"}, out.Names())
	assert.Equal(t, []string{"a", "c", "z"}, ds.Names())

	dropped := out.Drop("c_x", "missing")
	assert.Equal(t, []string{"a", "c_y", "z"}, dropped.Names())
	assert.Equal(t, 2, dropped.NumRows())
}

func TestTakeRowsAndMissing(t *testing.T) {
	ds, err := New(
		NewNumericColumn("a", []float64{1, math.NaN(), 3}),
		NewCategoricalColumn("b", []string{"x", "y", ""}),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.MissingCount())

	sub := ds.TakeRows([]int{0, 2})
	assert.Equal(t, 2, sub.NumRows())
	a, _ := sub.Column("a")
	assert.Equal(t, []float64{1, 3}, a.PresentFloats())
	b, _ := sub.Column("b")
	assert.True(t, b.IsMissing(1))
}

func TestReadCSVInfersTypes(t *testing.T) {
	input := strings.Join([]string{
		"id,amount,flag,city,joined,amount",
		"1,10.5,true,Lisbon,2024-01-02,1",
		"2,NA,false,Porto,2024-02-03,2",
		"3,7,yes,,2024-03-04,3",
	}, "\n")

	ds, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "amount", "flag", "city", "joined", "amount_1"}, ds.Names())

	amount, _ := ds.Column("amount")
	assert.Equal(t, TypeNumeric, amount.Type())
	assert.Equal(t, 1, amount.MissingCount())

	flag, _ := ds.Column("flag")
	assert.Equal(t, TypeBoolean, flag.Type())

	city, _ := ds.Column("city")
	assert.Equal(t, TypeCategorical, city.Type())
	assert.True(t, city.IsMissing(2))

	joined, _ := ds.Column("joined")
	assert.Equal(t, TypeDatetime, joined.Type())
	assert.Equal(t, "2024-01-02T00:00:00Z", joined.Text(0))
}

func TestWriteCSVRoundTrip(t *testing.T) {
	ds, err := New(
		NewNumericColumn("a", []float64{1.5, math.NaN()}),
		NewCategoricalColumn("b", []string{"x", "y"}),
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds))
	assert.Equal(t, "a,b\n1.5,x\n,y\n", buf.String())

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, ds.Fingerprint(), back.Fingerprint())
}
