package loyalty

import (
	"context"
	"encoding/json"
	"fmt"

	"loyaltyhub/pkg/errutil"
	"loyaltyhub/pkg/logger"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var TaskModule = fx.Module("task.loyalty",
	fx.Provide(NewTask),
	fx.Invoke(registerHandlers),
)

func (s *Service) enqueueVoucherIssued(ctx context.Context, v *Voucher) {
	if s.enqueuer == nil {
		return
	}

	zapLog := logger.FromContext(ctx).With(zap.Int64("voucher_id", v.ID))

	t, err := NewVoucherIssuedTask(VoucherIssuedPayload{
		VoucherID:  v.ID,
		CustomerID: v.CustomerID,
		Code:       v.Code,
		TraceID:    trace.SpanContextFromContext(ctx).TraceID().String(),
	})
	if err != nil {
		zapLog.Error("failed to build voucher issued task", zap.Error(err))
		return
	}

	if _, err := s.enqueuer.Enqueue(ctx, t, taskOptions(s.queue, v.ID)...); err != nil {
		zapLog.Warn("failed to enqueue voucher issued task", zap.Error(err))
	}
}

// Task handles background work emitted by the loyalty service.
type Task struct {
	svc *Service
}

func NewTask(svc *Service) *Task {
	return &Task{svc: svc}
}

func registerHandlers(mux *asynq.ServeMux, t *Task) {
	mux.HandleFunc(TypeVoucherIssued, t.HandleVoucherIssued)
}

// HandleVoucherIssued notifies the customer about a new voucher. Redelivered
// tasks for an already notified voucher are acknowledged without side effects.
func (t *Task) HandleVoucherIssued(ctx context.Context, task *asynq.Task) error {
	var payload VoucherIssuedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w: %w", err, asynq.SkipRetry)
	}

	zapLog := logger.FromContext(ctx).With(
		zap.String("task_type", task.Type()),
		zap.Int64("voucher_id", payload.VoucherID),
		zap.Int64("customer_id", payload.CustomerID),
		zap.String("trace_id", payload.TraceID),
	)

	v, err := t.svc.GetVoucher(ctx, payload.VoucherID)
	if errutil.Is(err, errutil.StatusNotFound) {
		zapLog.Warn("voucher no longer exists, dropping task")
		return nil
	}
	if err != nil {
		return err
	}

	if v.NotifiedAt != nil {
		zapLog.Debug("voucher already notified")
		return nil
	}

	now := t.svc.now().UTC()
	zapLog.Info("voucher issued",
		zap.String("code", v.Code),
		zap.String("value", v.Value.StringFixed(2)),
		zap.Time("expires_at", v.ExpiresAt),
		zap.String("status", string(v.Status(now))),
	)

	if _, err := t.svc.MarkNotified(ctx, v.ID); err != nil {
		return err
	}
	return nil
}
