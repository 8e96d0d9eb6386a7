package idhash

import "github.com/google/uuid"

// orderNamespace scopes name-based order ids to this application.
var orderNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("bond-reversion-lab/orders"))

// ComputeOrderID derives the local order id from a client request key.
// The same key always yields the same id, which makes order placement idempotent.
func ComputeOrderID(clientKey string) string {
	return uuid.NewSHA1(orderNamespace, []byte("order|"+clientKey)).String()
}

// ComputePairedSellID derives the id of the SELL paired with a filled BUY.
func ComputePairedSellID(buyOrderID string) string {
	return uuid.NewSHA1(orderNamespace, []byte("paired-sell|"+buyOrderID)).String()
}
