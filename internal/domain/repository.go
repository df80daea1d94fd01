package domain

type OperationRepository interface {
	RecordOperation(res Result) error
	ListOperations(server string, limit int) ([]Result, error)
	GetOperation(id string) (*Result, error)
}
