// Package domain defines the core data types shared across the
// muleguard detection pipeline and the services wrapped around it.
package domain

import "time"

// Transaction is a single directed monetary transfer as supplied by the
// (external) ingestion collaborator. Self-loops are permitted; amount
// must be non-negative.
type Transaction struct {
	Sender    string
	Receiver  string
	Amount    float64
	Timestamp time.Time
}

// EdgeAggregate is the coalesced view of every Transaction between the
// same ordered (sender, receiver) pair. Built once by the graph builder
// and never mutated afterward.
type EdgeAggregate struct {
	Sender          string
	Receiver        string
	TotalAmount     float64
	TransactionCount int
	Timestamps      []time.Time // ascending, one entry per coalesced row
}
