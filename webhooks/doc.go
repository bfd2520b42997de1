// Package webhooks tracks inbound webhook deliveries: a dedupe ledger with
// claim/complete/fail semantics and the retry backoff policy shared by the
// HTTP edge and the queue worker.
package webhooks
