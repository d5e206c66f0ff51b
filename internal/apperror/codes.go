package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Engine-specific error codes
const (
	// WebSocket / market-data errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"
	CodeEndpointBlocked          Code = "ENDPOINT_BLOCKED"

	// Exchange (Binance) errors
	CodeExchangeConnectionFailed Code = "EXCHANGE_CONNECTION_FAILED"
	CodeExchangeAPIError         Code = "EXCHANGE_API_ERROR"
	CodeExchangeRateLimited      Code = "EXCHANGE_RATE_LIMITED"
	CodeMarketMetadataFailed     Code = "MARKET_METADATA_FAILED"

	// Order-book errors
	CodeOrderbookMissing Code = "ORDERBOOK_MISSING"
	CodeOrderbookStale   Code = "ORDERBOOK_STALE"

	// Execution errors. Build failures and submit failures are distinct
	// variants: a build failure only releases the risk reservation, a
	// submit failure registers a breaker event.
	CodeCycleBuildFailed   Code = "CYCLE_BUILD_FAILED"
	CodeAssetFlowMismatch  Code = "ASSET_FLOW_MISMATCH"
	CodeInvalidInstruction Code = "INVALID_INSTRUCTION"
	CodeOrderSubmitFailed  Code = "ORDER_SUBMIT_FAILED"

	// Risk errors
	CodeRiskRejected Code = "RISK_REJECTED"
	CodeBreakerOpen  Code = "BREAKER_OPEN"
)
