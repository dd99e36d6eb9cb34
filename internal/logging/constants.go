package logging

// Standard field names.
const (
	FieldAccountID     = "account_id"
	FieldBank          = "bank"
	FieldFile          = "file_path"
	FieldTransactionID = "transaction_id"
	FieldCategory      = "category"
	FieldOperation     = "operation"
	FieldCount         = "count"
	FieldBackend       = "backend"
	FieldJobID         = "job_id"
	FieldAmount        = "amount"
	FieldReason        = "reason"
)
