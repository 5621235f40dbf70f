package woocommerce

// wooErrorResponse is the WooCommerce REST API error envelope, e.g.
//
//	{"code":"woocommerce_rest_cannot_view","message":"Sorry, ...","data":{"status":401}}
type wooErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
}
