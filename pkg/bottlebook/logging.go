package bottlebook

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service mutations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing ledger operation.
type OperationLog struct {
	Operation     string
	CustomerID    CustomerID
	TransactionID TransactionID
	Bottles       BottleCount
	Deposit       DepositCents
	Status        string
	Error         error
}

// WithOperationLogger wires a logger that receives callbacks for every mutation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithChangeIDFactory overrides pending-change id generation.
func WithChangeIDFactory(factory func() string) ServiceOption {
	return func(service *Service) {
		if factory != nil {
			service.newChangeID = factory
		}
	}
}
