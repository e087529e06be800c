package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldAccountID     = "account_id"
	FieldCardID        = "card_id"
	FieldTransactionID = "transaction_id"
	FieldAmount        = "amount"
	FieldCommandKind   = "command_kind"
	FieldBound         = "bound"
	FieldAttempt       = "attempt"
	FieldStatementRef  = "statement_ref"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentAllocation = "allocation"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentExport     = "export"
	ComponentBackend    = "backend"
	ComponentCache      = "cache"
)

// Operations defines standard operation names
const (
	OpValidate  = "validate"
	OpExecute   = "execute"
	OpPublish   = "publish"
	OpConsume   = "consume"
	OpReconcile = "reconcile"
	OpExportOp  = "export"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
