package model

// SalesVoucher is the order as pushed to the Focus8 ERP.
type SalesVoucher struct {
	Header SalesVoucherHeader `json:"Header"`
	Body   []SalesVoucherLine `json:"Body"`
}

type SalesVoucherHeader struct {
	Date       string `json:"Date"`
	CustomerAC int64  `json:"CustomerAC__Id"`
	Branch     int64  `json:"Branch__Id"`
	SalesMan   int64  `json:"SalesMan__Id"`
	District   int64  `json:"District__Id"`
	SNarration string `json:"sNarration"`
}

type SalesVoucherLine struct {
	Item     int64   `json:"Item__Id"`
	Quantity int     `json:"Quantity"`
	Rate     float64 `json:"Rate"`
}
