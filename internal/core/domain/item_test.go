package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProduct_Mod(t *testing.T) {
	p := NewProduct("cola", "Cola", 1, decimal.RequireFromString("1.25"))

	assert.True(t, p.Check())
	assert.True(t, p.Mod())
	assert.Equal(t, 0, p.Count())

	assert.False(t, p.Check())
	assert.False(t, p.Mod())
	assert.Equal(t, 0, p.Count())
}

func TestProduct_Disable(t *testing.T) {
	p := NewProduct("chips", "Chips", 3, decimal.NewFromInt(2))

	p.Disable()
	assert.False(t, p.Check())
	assert.Equal(t, 3, p.Count())

	p.Enable()
	assert.True(t, p.Check())
}

func TestProduct_AddCount(t *testing.T) {
	p := NewProduct("gum", "Gum", -4, decimal.NewFromInt(1))
	assert.Equal(t, 0, p.Count())

	p.AddCount(5)
	assert.Equal(t, 5, p.Count())
}

func TestTx_Done(t *testing.T) {
	var tx *Tx
	assert.False(t, tx.Done())

	tx = NewTx(decimal.NewFromInt(1), TxStatusDone, "")
	assert.True(t, tx.Done())
	assert.NotEqual(t, tx.ID.String(), "")

	tx.Status = TxStatusReversed
	assert.False(t, tx.Done())
}
