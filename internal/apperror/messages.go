package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	// WebSocket / market-data errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",
	CodeEndpointBlocked:          "Endpoint rejected connection with a geographic block",

	// Exchange errors
	CodeExchangeConnectionFailed: "Failed to connect to exchange API",
	CodeExchangeAPIError:         "Exchange API call failed",
	CodeExchangeRateLimited:      "Exchange rate limit hit",
	CodeMarketMetadataFailed:     "Failed to load exchange market metadata",

	// Order-book errors
	CodeOrderbookMissing: "Order book unavailable for symbol",
	CodeOrderbookStale:   "Order book data is stale",

	// Execution errors
	CodeCycleBuildFailed:   "Failed to build cycle instructions",
	CodeAssetFlowMismatch:  "Cycle legs do not align with held asset",
	CodeInvalidInstruction: "Order instruction has non-positive amount or price",
	CodeOrderSubmitFailed:  "Order submission failed",

	// Risk errors
	CodeRiskRejected: "Cycle rejected by risk limits",
	CodeBreakerOpen:  "Circuit breaker is open",
}
