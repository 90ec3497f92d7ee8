// Package integration combines circuit breaker and retry patterns for
// comprehensive fault tolerance around landkeeper's external dependencies:
// the replay filestore, session writes, config reloads, and the Redis
// deployment backing matchmaking and the cluster directory.
//
// This package provides ResilientExecutor which layers retry logic on top of
// circuit breaker protection, giving operations the benefits of both mechanisms:
// automatic retries for transient failures and fast-fail for persistent outages.
//
// # Execution Flow
//
// When executing an operation:
//
//  1. Retry runs the operation up to its configured number of attempts
//  2. Each attempt passes through the circuit breaker first
//  3. If the circuit is open, that attempt fails immediately with ErrCircuitBreakerOpen
//  4. Otherwise the operation runs and the breaker records its success/failure
//  5. After a failed attempt, retry decides whether to try again, with exponential backoff
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
//	executor := integration.CreateCustomExecutor("my-service", cbConfig, retryConfig)
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
//	// Redis (matchmaking store, queue, cluster directory)
//	err := integration.ExecuteRedisOperation(ctx, operation)
//
//	// Provisioning registry HTTP calls
//	err := integration.ExecuteProvisioningOperation(ctx, operation)
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
//	// Circuit breaker only, no retry
//	err := integration.WithRetryDisabled(cbConfig).Execute(ctx, operation)
//
//	// Retry only, no circuit breaker
//	err := integration.WithCircuitBreakerDisabled(retryConfig).Execute(ctx, operation)
//
// # Statistics
//
// Query the executor's circuit breaker statistics:
//
//	stats := executor.GetStats()
//	// Circuit breaker stats, each key prefixed with "circuit_breaker_";
//	// no retry metrics are included
//
// # Testing
//
// Reset global executors between tests:
//
//	integration.ResetExecutorsForTesting()
package integration
