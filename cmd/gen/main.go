// gen synthesizes transaction batches exercising muleguard's detection
// typologies and submits them to a running server for inspection.
//
// Usage:
//
//	go run cmd/gen/main.go -scenario cycle -url http://localhost:8080
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"
)

// Transaction mirrors domain.Transaction's wire shape without importing
// the module — gen is meant to run standalone against any server build.
type Transaction struct {
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

type BatchRequest struct {
	Transactions []Transaction `json:"transactions"`
}

type AccountScore struct {
	AccountID      string  `json:"account_id"`
	SuspicionScore float64 `json:"suspicion_score"`
}

type FraudRing struct {
	RingID    string   `json:"ring_id"`
	Members   []string `json:"member_accounts"`
	RiskScore float64  `json:"risk_score"`
}

type Summary struct {
	TotalAccountsAnalyzed     int     `json:"total_accounts_analyzed"`
	SuspiciousAccountsFlagged int     `json:"suspicious_accounts_flagged"`
	FraudRingsDetected        int     `json:"fraud_rings_detected"`
	ProcessingTimeSeconds     float64 `json:"processing_time_seconds"`
}

type ResultBundle struct {
	RunID              string         `json:"run_id"`
	SuspiciousAccounts []AccountScore `json:"suspicious_accounts"`
	FraudRings         []FraudRing    `json:"fraud_rings"`
	Summary            Summary        `json:"summary"`
}

type BatchResponse struct {
	BatchID string       `json:"batchId"`
	Result  ResultBundle `json:"result"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "muleguard base URL")
	scenario := flag.String("scenario", "mixed", "scenario to generate: cycle, fanin, fanout, smurfing, shell, velocity, mixed")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	verbose := flag.Bool("verbose", false, "print the generated transactions before submitting")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: muleguard not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure muleguard is running:")
		fmt.Println("  go run cmd/muleguard/main.go")
		os.Exit(1)
	}
	fmt.Println("muleguard is healthy")

	txs := generateScenario(*scenario, rng)
	fmt.Printf("generated %d transactions for scenario %q\n", len(txs), *scenario)

	if *verbose {
		for _, tx := range txs {
			fmt.Printf("  %-8s -> %-8s  $%10.2f  %s\n", tx.Sender, tx.Receiver, tx.Amount, tx.Timestamp.Format(time.RFC3339))
		}
	}

	result, err := submitBatch(*baseURL, txs)
	if err != nil {
		fmt.Printf("ERROR: batch submission failed: %v\n", err)
		os.Exit(1)
	}

	printResult(result)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func submitBatch(baseURL string, txs []Transaction) (*BatchResponse, error) {
	body, err := json.Marshal(BatchRequest{Transactions: txs})
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(baseURL+"/batches", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResult(r *BatchResponse) {
	fmt.Println("\nbatch result")
	fmt.Printf("  batch id:            %s\n", r.BatchID)
	fmt.Printf("  accounts analyzed:   %d\n", r.Result.Summary.TotalAccountsAnalyzed)
	fmt.Printf("  accounts flagged:    %d\n", r.Result.Summary.SuspiciousAccountsFlagged)
	fmt.Printf("  fraud rings found:   %d\n", r.Result.Summary.FraudRingsDetected)
	fmt.Printf("  processing time:     %.3fs\n", r.Result.Summary.ProcessingTimeSeconds)

	if len(r.Result.FraudRings) > 0 {
		fmt.Println("\n  rings:")
		for _, ring := range r.Result.FraudRings {
			fmt.Printf("    %-10s risk=%6.2f members=%v\n", ring.RingID, ring.RiskScore, ring.Members)
		}
	}
	if len(r.Result.SuspiciousAccounts) > 0 {
		fmt.Println("\n  top flagged accounts:")
		limit := len(r.Result.SuspiciousAccounts)
		if limit > 10 {
			limit = 10
		}
		for _, acc := range r.Result.SuspiciousAccounts[:limit] {
			fmt.Printf("    %-10s score=%6.2f\n", acc.AccountID, acc.SuspicionScore)
		}
	}
}

func generateScenario(scenario string, rng *rand.Rand) []Transaction {
	base := time.Now().Add(-72 * time.Hour)

	switch scenario {
	case "cycle":
		return cycleScenario(base, 5)
	case "fanin":
		return fanInScenario(base, rng, 15)
	case "fanout":
		return fanOutScenario(base, rng, 15)
	case "smurfing":
		return smurfingScenario(base, rng, 12)
	case "shell":
		return shellChainScenario(base, 4)
	case "velocity":
		return velocityScenario(base, rng, 25)
	case "mixed":
		var txs []Transaction
		txs = append(txs, cycleScenario(base, 4)...)
		txs = append(txs, fanInScenario(base.Add(time.Hour), rng, 12)...)
		txs = append(txs, fanOutScenario(base.Add(2*time.Hour), rng, 12)...)
		txs = append(txs, smurfingScenario(base.Add(3*time.Hour), rng, 10)...)
		txs = append(txs, shellChainScenario(base.Add(4*time.Hour), 5)...)
		return txs
	default:
		fmt.Printf("unknown scenario %q, defaulting to mixed\n", scenario)
		return generateScenario("mixed", rng)
	}
}

// cycleScenario builds a simple rotating-funds cycle A->B->C->...->A.
func cycleScenario(start time.Time, length int) []Transaction {
	var txs []Transaction
	accounts := make([]string, length)
	for i := range accounts {
		accounts[i] = fmt.Sprintf("cyc-%d", i)
	}
	for i := 0; i < length; i++ {
		next := (i + 1) % length
		txs = append(txs, Transaction{
			Sender:    accounts[i],
			Receiver:  accounts[next],
			Amount:    1000 + float64(i)*50,
			Timestamp: start.Add(time.Duration(i) * time.Minute),
		})
	}
	return txs
}

// fanInScenario funnels money from many senders into a single collector.
func fanInScenario(start time.Time, rng *rand.Rand, senderCount int) []Transaction {
	var txs []Transaction
	collector := "collector-1"
	for i := 0; i < senderCount; i++ {
		sender := fmt.Sprintf("fanin-src-%d", i)
		txs = append(txs, Transaction{
			Sender:    sender,
			Receiver:  collector,
			Amount:    200 + rng.Float64()*300,
			Timestamp: start.Add(time.Duration(i) * time.Minute),
		})
	}
	return txs
}

// fanOutScenario sprays money from a single disburser to many receivers.
func fanOutScenario(start time.Time, rng *rand.Rand, receiverCount int) []Transaction {
	var txs []Transaction
	disburser := "disburser-1"
	for i := 0; i < receiverCount; i++ {
		receiver := fmt.Sprintf("fanout-dst-%d", i)
		txs = append(txs, Transaction{
			Sender:    disburser,
			Receiver:  receiver,
			Amount:    200 + rng.Float64()*300,
			Timestamp: start.Add(time.Duration(i) * time.Minute),
		})
	}
	return txs
}

// smurfingScenario has one source structure payments below a reporting
// threshold across many distinct counterparties within a short window.
func smurfingScenario(start time.Time, rng *rand.Rand, counterpartyCount int) []Transaction {
	var txs []Transaction
	source := "smurf-source"
	for i := 0; i < counterpartyCount; i++ {
		receiver := fmt.Sprintf("smurf-dst-%d", i)
		txs = append(txs, Transaction{
			Sender:    source,
			Receiver:  receiver,
			Amount:    900 + rng.Float64()*90,
			Timestamp: start.Add(time.Duration(i) * time.Hour / 2),
		})
	}
	return txs
}

// shellChainScenario passes a fixed sum through a chain of low-degree
// shell accounts before it reaches a final destination.
func shellChainScenario(start time.Time, depth int) []Transaction {
	var txs []Transaction
	prev := "shell-origin"
	amount := 50000.0
	for i := 0; i < depth; i++ {
		next := fmt.Sprintf("shell-%d", i)
		txs = append(txs, Transaction{
			Sender:    prev,
			Receiver:  next,
			Amount:    amount,
			Timestamp: start.Add(time.Duration(i) * 10 * time.Minute),
		})
		prev = next
	}
	txs = append(txs, Transaction{
		Sender:    prev,
		Receiver:  "shell-destination",
		Amount:    amount,
		Timestamp: start.Add(time.Duration(depth) * 10 * time.Minute),
	})
	return txs
}

// velocityScenario sends a high count of transactions between the same
// pair of accounts within a short rolling window.
func velocityScenario(start time.Time, rng *rand.Rand, count int) []Transaction {
	var txs []Transaction
	for i := 0; i < count; i++ {
		txs = append(txs, Transaction{
			Sender:    "velocity-a",
			Receiver:  "velocity-b",
			Amount:    50 + rng.Float64()*25,
			Timestamp: start.Add(time.Duration(i) * time.Minute),
		})
	}
	return txs
}
