package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"

	FieldUserID        = "user_id"
	FieldFamilyID      = "family_id"
	FieldRequestID     = "join_request_id"
	FieldExpenseID     = "expense_id"
	FieldGoalID        = "goal_id"
	FieldAmountCents   = "amount_cents"
	FieldEntity        = "entity"
	FieldAction        = "action"
	FieldRoutingKey    = "routing_key"
	FieldSpreadsheetID = "spreadsheet_id"
)

// Components
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentPairing  = "pairing"
	ComponentLedger   = "ledger"
	ComponentProfile  = "profile"
	ComponentAdmin    = "admin"
	ComponentStorage  = "storage"
	ComponentNotify   = "notify"
	ComponentAMQP     = "amqp"
	ComponentEmail    = "email"
	ComponentSheets   = "sheets"
	ComponentSecurity = "security"
)

// Operations
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpList     = "list"
	OpApprove  = "approve"
	OpDecline  = "decline"
	OpRequest  = "request_join"
	OpExpire   = "expire"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpAppend   = "append"
	OpMigrate  = "migrate"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// Error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeConflict      = "conflict_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithFamily adds the family id
func (f LogFields) WithFamily(familyID string) LogFields {
	f[FieldFamilyID] = familyID
	return f
}

// WithUser adds the user id
func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithHTTPRequest adds request fields
func (f LogFields) WithHTTPRequest(method, path, clientIP string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if clientIP != "" {
		f[FieldClientIP] = clientIP
	}
	return f
}

// WithHTTPResponse adds response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// Set adds an arbitrary field
func (f LogFields) Set(key string, value any) LogFields {
	f[key] = value
	return f
}

// ToSlice flattens the fields into slog key/value arguments
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
