package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

type Side string

type OrderKind string

type OrderStatus string

type AssetClass string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

const (
	Limit  OrderKind = "limit"
	Market OrderKind = "market"
)

const (
	OrderPending  OrderStatus = "pending"
	OrderOpen     OrderStatus = "open"
	OrderClosed   OrderStatus = "closed"
	OrderCanceled OrderStatus = "canceled"
	OrderExpired  OrderStatus = "expired"
)

const (
	Fiat   AssetClass = "fiat"
	Crypto AssetClass = "crypto"
)

// Terminal reports whether tracking the order can stop. Only closed and
// canceled are final; an expired order stays under watch.
func (s OrderStatus) Terminal() bool {
	return s == OrderClosed || s == OrderCanceled
}

// Asset is one venue currency. Code is the internal venue name (XXBT, ZEUR),
// AltName the short display form (XBT, EUR).
type Asset struct {
	Code    string
	AltName string
	Class   AssetClass
}

// Pair is a tradable base/quote combination. MinVolume is the venue minimum
// order size for the base asset; nil means the minimum is unknown.
type Pair struct {
	Base      string // asset code, e.g. XXBT
	Quote     string // asset code, e.g. ZEUR
	Code      string // venue pair code, e.g. XXBTZEUR
	AltCode   string // short pair code used in order listings, e.g. XBTEUR
	WSName    string // websocket pair name, e.g. XBT/EUR
	MinVolume *decimal.Decimal
}

// OpenOrder is one outstanding order as reported by the venue.
type OpenOrder struct {
	TxID        string
	Pair        string // short pair code as reported in order listings
	Side        Side
	Kind        OrderKind
	Price       decimal.Decimal // zero for market orders
	Volume      decimal.Decimal
	Description string
}

// OrderRequest is the payload for placing an order. TradingAgreement must be
// set for market orders (venue requirement).
type OrderRequest struct {
	Pair             string
	Side             Side
	Kind             OrderKind
	Price            decimal.Decimal
	Volume           decimal.Decimal
	TradingAgreement bool
}

// OrderInfo is the queried state of a single order.
type OrderInfo struct {
	TxID        string
	Status      OrderStatus
	Description string
}

var txidPattern = regexp.MustCompile(`^[A-Z0-9]{6}-[A-Z0-9]{5}-[A-Z0-9]{6}$`)

// ValidTxID reports whether s has the venue transaction id shape.
func ValidTxID(s string) bool {
	return txidPattern.MatchString(strings.TrimSpace(s))
}

// ClassOf derives the asset class from a venue asset code. Fiat currencies
// carry a Z prefix (ZEUR, ZUSD), everything else is treated as crypto.
func ClassOf(code string) AssetClass {
	if strings.HasPrefix(code, "Z") {
		return Fiat
	}
	return Crypto
}
