package kraken

import "encoding/json"

// Every venue response carries an error list (empty on success) and a result
// payload.
type envelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

type assetInfo struct {
	AltName string `json:"altname"`
	Class   string `json:"aclass"`
}

type pairInfo struct {
	AltName  string `json:"altname"`
	WSName   string `json:"wsname"`
	Base     string `json:"base"`
	Quote    string `json:"quote"`
	OrderMin string `json:"ordermin"`
}

type tickerInfo struct {
	// c holds [last trade price, lot volume].
	Close []string `json:"c"`
}

type tradeBalanceResult struct {
	Equivalent string `json:"eb"`
}

type orderDescr struct {
	Pair      string `json:"pair"`
	Side      string `json:"type"`
	OrderType string `json:"ordertype"`
	Price     string `json:"price"`
	Order     string `json:"order"`
}

type openOrderInfo struct {
	Status string     `json:"status"`
	Volume string     `json:"vol"`
	Descr  orderDescr `json:"descr"`
}

type openOrdersResult struct {
	Open map[string]openOrderInfo `json:"open"`
}

type addOrderResult struct {
	Descr orderDescr `json:"descr"`
	TxIDs []string   `json:"txid"`
}
