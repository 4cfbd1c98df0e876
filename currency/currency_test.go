package currency

import (
	"testing"
	"testing/quick"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestNominalGroup(t *testing.T) *NominalGroup {
	ng := &NominalGroup{}
	ng.SetValid([]Nominal{10, 5, 2, 1})
	if err := ng.Add(101, 1); err == nil {
		t.Fatal("expected invalid nominal")
	}
	if err := ng.Add(10, 2); err != nil {
		t.Fatal(err)
	}
	if err := ng.Add(5, 8); err != nil {
		t.Fatal(err)
	}
	if err := ng.Add(2, 1); err != nil {
		t.Fatal(err)
	}
	if err := ng.Add(1, 3); err != nil {
		t.Fatal(err)
	}
	return ng
}

func testCheckNominalGroup(t *testing.T, strategy ExpendStrategy) {
	ng := createTestNominalGroup(t)

	total1 := ng.Total()
	if _, err := ng.Copy().Withdraw(nil, 17, strategy); err != nil {
		t.Fatal(err)
	}
	total2 := ng.Total()
	if _, err := ng.Withdraw(nil, 17, strategy); err != nil {
		t.Fatal(err)
	}
	total3 := ng.Total()
	if _, err := ng.Copy().Withdraw(nil, 100, strategy); err == nil {
		t.Fatal("expected withdraw error")
	}
	total4 := ng.Total()
	if _, err := ng.Withdraw(nil, 100, strategy); err == nil {
		t.Fatal("expected withdraw error")
	}
	total5 := ng.Total()
	const exptotal1 = 65
	const exptotal2 = 48
	const exptotal3 = 0
	if total1 != exptotal1 || total2 != exptotal1 {
		t.Fatalf("expected total1 %d == total2 %d == %d", total1, total2, exptotal1)
	}
	if total3 != exptotal2 || total4 != exptotal2 {
		t.Fatalf("expected total3 %d == total4 %d == %d", total3, total4, exptotal2)
	}
	if total5 != exptotal3 {
		t.Fatalf("expected total5 %d == %d", total5, exptotal3)
	}
}

func TestNominalGroup(t *testing.T) {
	t.Parallel()
	t.Run("ExpendLeastCount", func(t *testing.T) { testCheckNominalGroup(t, NewExpendLeastCount()) })
}

func TestWithdrawLeft(t *testing.T) {
	t.Parallel()

	ng := &NominalGroup{}
	ng.SetValid([]Nominal{200, 100, 50, 20, 10, 5, 2, 1})
	ng.MustAdd(200, 1)
	ng.MustAdd(100, 10)
	out := &NominalGroup{}
	left, err := ng.Copy().Withdraw(out, 125, NewExpendLeastCount())
	assert.Equal(t, ErrNominalCount, errors.Cause(err))
	assert.Equal(t, Amount(25), left)
	assert.Equal(t, Amount(100), out.Total())

	left, err = ng.Withdraw(out, 0, NewExpendLeastCount())
	require.NoError(t, err)
	assert.Equal(t, Amount(0), left)

	_, err = ng.Withdraw(nil, -5, NewExpendLeastCount())
	assert.True(t, errors.IsNotValid(err))
}

func TestRemove(t *testing.T) {
	t.Parallel()

	ng := &NominalGroup{}
	ng.SetValid([]Nominal{50, 10})
	ng.MustAdd(50, 3)
	n, err := ng.Remove(50, 5)
	require.NoError(t, err)
	assert.Equal(t, uint(3), n)
	c, _ := ng.Get(50)
	assert.Equal(t, uint(0), c)
	_, err = ng.Remove(7, 1)
	assert.Equal(t, ErrNominalInvalid, errors.Cause(err))
}

func TestIterDescending(t *testing.T) {
	t.Parallel()

	ng := createTestNominalGroup(t)
	seen := []Nominal{}
	require.NoError(t, ng.Iter(func(n Nominal, c uint) error {
		seen = append(seen, n)
		return nil
	}))
	assert.Equal(t, []Nominal{10, 5, 2, 1}, seen)
}

// Greedy dispensal must sum exactly to requested amount whenever it succeeds.
func TestGreedySumProperty(t *testing.T) {
	t.Parallel()

	nominals := []Nominal{200, 100, 50, 20, 10, 5, 2, 1}
	f := func(counts [8]uint8, req uint16) bool {
		ng := &NominalGroup{}
		ng.SetValid(nominals)
		for i, n := range nominals {
			ng.MustAdd(n, uint(counts[i]%16))
		}
		amount := Amount(req % 2000)
		before := ng.Total()
		out := &NominalGroup{}
		left, err := ng.Withdraw(out, amount, NewExpendLeastCount())
		if err != nil {
			return left > 0 && out.Total()+left == amount
		}
		return out.Total() == amount && ng.Total() == before-amount
	}
	assert.NoError(t, quick.Check(f, &quick.Config{MaxCount: 2000}))
}

func TestAmountFormat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a      Amount
		expect string
	}{
		{0, "£0.00"},
		{1, "£0.01"},
		{150, "£1.50"},
		{1000, "£10.00"},
		{-25, "-£0.25"},
	}
	for _, c := range cases {
		assert.Equal(t, c.expect, c.a.String())
	}
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input     string
		expect    Amount
		expectErr bool
	}{
		{"1.50", 150, false},
		{"1.5", 150, false},
		{"2", 200, false},
		{"£0.75", 75, false},
		{".05", 5, false},
		{"-0.50", -50, false},
		{"1.234", 0, true},
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, c := range cases {
		c := c
		t.Run(c.input, func(t *testing.T) {
			a, err := ParseAmount(c.input)
			if c.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expect, a)
		})
	}
}
