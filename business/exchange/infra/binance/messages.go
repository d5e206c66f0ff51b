package binance

// REST API response shapes. Unknown fields are tolerated; unknown shapes
// are parse errors.

// exchangeInfoResponse is the /api/v3/exchangeInfo response.
type exchangeInfoResponse struct {
	Symbols []exchangeSymbolInfo `json:"symbols"`
}

type exchangeSymbolInfo struct {
	Symbol             string `json:"symbol"`
	Status             string `json:"status"`
	BaseAsset          string `json:"baseAsset"`
	QuoteAsset         string `json:"quoteAsset"`
	BaseAssetPrecision int32  `json:"baseAssetPrecision"`
}

// accountResponse is the /api/v3/account response.
type accountResponse struct {
	Balances []accountBalance `json:"balances"`
}

type accountBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// orderAckResponse is the /api/v3/order ACK response.
type orderAckResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	TransactTime  int64  `json:"transactTime"`
	Status        string `json:"status"`
}
