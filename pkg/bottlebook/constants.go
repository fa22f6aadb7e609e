package bottlebook

const (
	operationAddCustomer       = "add_customer"
	operationDeleteCustomer    = "delete_customer"
	operationUpdateTrustStatus = "update_trust_status"
	operationAddTransaction    = "add_transaction"
	operationDeleteTransaction = "delete_transaction"
	operationImportSnapshot    = "import_snapshot"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// SnapshotVersion is the backup document version emitted by
	// ExportSnapshot and required on import.
	SnapshotVersion = 2
)
