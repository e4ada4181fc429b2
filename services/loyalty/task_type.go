package loyalty

import (
	"encoding/json"
	"time"

	"loyaltyhub/pkg/taskname"

	"github.com/hibiken/asynq"
)

const (
	TypeVoucherIssued = taskname.VoucherIssued
)

type VoucherIssuedPayload struct {
	VoucherID  int64  `json:"voucher_id,string"`
	CustomerID int64  `json:"customer_id,string"`
	Code       string `json:"code"`
	TraceID    string `json:"trace_id,omitempty"`
}

func NewVoucherIssuedTask(p VoucherIssuedPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeVoucherIssued, b), nil
}

// taskOptions keeps one notification per voucher even if the enqueue is retried.
func taskOptions(queue string, voucherID int64) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(queue),
		asynq.MaxRetry(5),
		asynq.TaskID(TypeVoucherIssued + ":" + formatID(voucherID)),
		asynq.Retention(24 * time.Hour),
	}
}
