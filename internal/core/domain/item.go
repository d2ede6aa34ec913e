package domain

import "github.com/shopspring/decimal"

// Item is a sellable item kind held by the inventory store.
type Item interface {
	Code() string
	Count() int
	AddCount(n int)
	Price() decimal.Decimal

	// Check reports whether the item can currently be sold.
	Check() bool

	// Mod consumes one unit, returns false if nothing was dispensed
	Mod() bool
}

type Product struct {
	code     string
	name     string
	count    int
	price    decimal.Decimal
	disabled bool
}

func NewProduct(code, name string, count int, price decimal.Decimal) *Product {
	if count < 0 {
		count = 0
	}
	return &Product{
		code:  code,
		name:  name,
		count: count,
		price: price,
	}
}

func (p *Product) Code() string           { return p.code }
func (p *Product) Name() string           { return p.name }
func (p *Product) Count() int             { return p.count }
func (p *Product) Price() decimal.Decimal { return p.price }

func (p *Product) AddCount(n int) {
	p.count += n
	if p.count < 0 {
		p.count = 0
	}
}

// Disable takes the product off sale without touching its stock.
func (p *Product) Disable() { p.disabled = true }
func (p *Product) Enable()  { p.disabled = false }

func (p *Product) Check() bool {
	return !p.disabled && p.count > 0
}

func (p *Product) Mod() bool {
	if p.count <= 0 {
		return false
	}
	p.count--
	return true
}
