package log

// Attribute keys.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldReferer       = "referer"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOperation     = "operation"
	FieldTransactionID = "transaction_id"
	FieldDescription   = "description"
	FieldAmount        = "amount"
	FieldType          = "type"
	FieldCount         = "count"
	FieldBackend       = "backend"
)

const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentTransaction = "transaction"
	ComponentStorage     = "storage"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentSheets      = "sheets"
	ComponentDashboard   = "dashboard"
	ComponentWebSocket   = "websocket"
	ComponentBackend     = "backend"
)

const (
	OpCreate  = "create"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpList    = "list"
	OpSync    = "sync"
	OpPublish = "publish"
	OpConsume = "consume"
	OpRender  = "render"
)

// Error categories for the error_type attribute.
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeDatabase   = "database_error"
	ErrorTypeNotFound   = "not_found_error"
	ErrorTypeInternal   = "internal_error"
	ErrorTypeSecurity   = "security_error"
)

// Fields accumulates key/value pairs in insertion order, ready to pass to
// any slog method.
type Fields []any

func NewFields() Fields {
	return make(Fields, 0, 16)
}

// With appends raw key/value pairs.
func (f Fields) With(args ...any) Fields {
	return append(f, args...)
}

func (f Fields) WithClientIP(ip string) Fields {
	return append(f, FieldClientIP, ip)
}

// WithError adds the error message and, when given, its category.
func (f Fields) WithError(err error, errorType ...string) Fields {
	if err != nil {
		f = append(f, FieldError, err.Error())
	}
	if len(errorType) > 0 {
		f = append(f, FieldErrorType, errorType[0])
	}
	return f
}

func (f Fields) WithOperation(op string) Fields {
	return append(f, FieldOperation, op)
}

func (f Fields) WithTransaction(id, description, amount, typ string) Fields {
	return append(f,
		FieldTransactionID, id,
		FieldDescription, description,
		FieldAmount, amount,
		FieldType, typ)
}

// WithHTTPRequest skips empty optional values.
func (f Fields) WithHTTPRequest(method, path, query, userAgent, referer string) Fields {
	f = append(f, FieldMethod, method, FieldPath, path)
	for _, kv := range [][2]string{{FieldQuery, query}, {FieldUserAgent, userAgent}, {FieldReferer, referer}} {
		if kv[1] != "" {
			f = append(f, kv[0], kv[1])
		}
	}
	return f
}

func (f Fields) WithHTTPResponse(statusCode int, durationMs int64) Fields {
	return append(f, FieldStatusCode, statusCode, FieldDuration, durationMs)
}
