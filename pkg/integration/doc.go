// Package integration combines circuit breaker and retry patterns for
// fault tolerance around external dependencies. In the relay, the
// bridge client's WebSocket connection to the central server runs
// through NetworkExecutor; qdb snapshot writes and config loading do
// not use an executor, although file-system and config executors are
// provided.
//
// This package provides ResilientExecutor which layers retry logic on top of
// circuit breaker protection, giving operations the benefits of both mechanisms:
// automatic retries for transient failures, and attempts that skip the
// operation while the circuit is open.
//
// # Execution Flow
//
// When executing an operation:
//
//  1. The retrier runs the attempt loop
//  2. Each attempt passes through the circuit breaker
//  3. If the circuit is open, the attempt fails with ErrCircuitBreakerOpen
//     without running the operation
//  4. Otherwise the operation runs and the breaker records its success or failure
//  5. After any error, ErrCircuitBreakerOpen included, the retrier waits with
//     exponential backoff and tries again, until an attempt succeeds,
//     MaxAttempts is reached, or the context ends
//
// # Creating Executors
//
// Create a custom executor with specific configuration:
//
//	cbConfig := resilience.CircuitBreakerConfig{
//	    MaxFailures: 5,
//	    Timeout:     30 * time.Second,
//	}
//	retryConfig := retry.RetryConfig{
//	    MaxAttempts:  3,
//	    InitialDelay: 100 * time.Millisecond,
//	}
//	executor := integration.NewResilientExecutor(cbConfig, retryConfig)
//
// # Executing Operations
//
// Wrap operations with combined protection:
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return callExternalAPI()
//	})
//
// # Pre-configured Executors
//
// Global executors for common operation types:
//
//	// File system operations
//	err := integration.ExecuteFileSystemOperation(ctx, operation)
//
//	// Network/WebSocket operations
//	err := integration.ExecuteNetworkOperation(ctx, operation)
//
//	// Configuration loading
//	err := integration.ExecuteConfigOperation(ctx, operation)
//
// # Ad-hoc Execution
//
// For one-off operations with custom options:
//
//	err := integration.ExecuteResilient(ctx, operation,
//	    integration.ConfigureRetry(retryConfig),
//	    integration.ConfigureCircuitBreaker(cbConfig),
//	)
//
// # Disabling Mechanisms
//
// Run with only one protection mechanism:
//
//	// Circuit breaker only, a single attempt
//	err := integration.WithRetryDisabled(cbConfig).Execute(ctx, operation)
//
//	// Retry only, behind a breaker whose threshold is too high to open
//	err := integration.WithCircuitBreakerDisabled(retryConfig).Execute(ctx, operation)
//
// # Statistics
//
// Query the circuit breaker's statistics; keys carry a "circuit_breaker_"
// prefix, and the retrier contributes none:
//
//	stats := executor.GetStats()
//	// Contains circuit breaker state and counters only
package integration
