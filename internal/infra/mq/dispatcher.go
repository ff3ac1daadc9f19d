package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"vmpool/internal/domain"
	"vmpool/internal/engine"
	"vmpool/internal/infra/telemetry"
)

// Dispatcher decodes command envelopes and runs them against the engine.
type Dispatcher struct {
	engine *engine.Engine
	retry  engine.RetryPolicy
	logger *zap.Logger
}

func NewDispatcher(eng *engine.Engine, retry engine.RetryPolicy, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{engine: eng, retry: retry, logger: logger.Named("mq")}
}

// Handle runs one command and always produces a response; failures are
// reported in the response rather than returned.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) Response {
	var env CommandEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return errorResponse(domain.E(domain.CodeInvalidArgument, "decode command", "invalid command format: "+err.Error(), nil))
	}

	var (
		payload any
		err     error
	)
	switch env.Type {
	case CommandCheckAvailability:
		payload, err = d.checkAvailability(ctx, env.Payload)
	case CommandCreateReservation:
		payload, err = d.createReservation(ctx, env.Payload)
	case CommandEditReservation:
		payload, err = d.editReservation(ctx, env.Payload)
	case CommandCancelReservation:
		payload, err = d.cancelReservation(ctx, env.Payload)
	case CommandCancelReservations:
		payload, err = d.cancelReservations(ctx, env.Payload)
	default:
		err = domain.E(domain.CodeInvalidArgument, "dispatch", "unknown command type: "+string(env.Type), nil)
	}

	logger := telemetry.LoggerWithRequest(ctx, d.logger)
	if err != nil {
		logger.Debug("command failed", zap.String("type", string(env.Type)), zap.Error(err))
		return errorResponse(err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("encode response", zap.String("type", string(env.Type)), zap.Error(err))
		return errorResponse(fmt.Errorf("encode response: %w", err))
	}
	return Response{OK: true, Type: string(env.Type) + "Response", Payload: data}
}

func errorResponse(err error) Response {
	resp := Response{OK: false, Error: err.Error(), Type: "Error"}
	if code, ok := domain.CodeFrom(err); ok {
		resp.Code = code
	} else if errors.Is(err, context.DeadlineExceeded) {
		resp.Code = domain.CodeDeadlineExceeded
	} else {
		resp.Code = domain.CodeInternal
	}
	return resp
}

func decodePayload(op string, raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return domain.E(domain.CodeInvalidArgument, op, "payload is required", nil)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.E(domain.CodeInvalidArgument, op, "invalid payload: "+err.Error(), nil)
	}
	return nil
}

func (d *Dispatcher) checkAvailability(ctx context.Context, raw json.RawMessage) (any, error) {
	const op = "check availability"
	var req CheckAvailabilityPayload
	if err := decodePayload(op, raw, &req); err != nil {
		return nil, err
	}
	free, err := d.engine.Available(ctx, req.PoolID, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	return AvailabilityResponsePayload{PoolID: req.PoolID, Available: free}, nil
}

func (d *Dispatcher) createReservation(ctx context.Context, raw json.RawMessage) (any, error) {
	var req CreateReservationPayload
	if err := decodePayload("create reservation", raw, &req); err != nil {
		return nil, err
	}
	var created domain.Reservation
	err := engine.Retry(ctx, d.retry, func() error {
		var err error
		created, err = d.engine.CreateReservation(ctx, engine.CreateRequest(req))
		return err
	})
	return created, err
}

func (d *Dispatcher) editReservation(ctx context.Context, raw json.RawMessage) (any, error) {
	const op = "edit reservation"
	var req EditReservationPayload
	if err := decodePayload(op, raw, &req); err != nil {
		return nil, err
	}
	if req.ReservationID == "" {
		return nil, domain.E(domain.CodeInvalidArgument, op, "reservationId is required", nil)
	}
	var updated domain.Reservation
	err := engine.Retry(ctx, d.retry, func() error {
		var err error
		updated, err = d.engine.EditReservation(ctx, req.ReservationID, engine.EditRequest{
			Start:        req.Start,
			End:          req.End,
			MachineCount: req.MachineCount,
		})
		return err
	})
	return updated, err
}

func (d *Dispatcher) cancelReservation(ctx context.Context, raw json.RawMessage) (any, error) {
	const op = "cancel reservation"
	var req CancelReservationPayload
	if err := decodePayload(op, raw, &req); err != nil {
		return nil, err
	}
	if req.ReservationID == "" {
		return nil, domain.E(domain.CodeInvalidArgument, op, "reservationId is required", nil)
	}
	var cancelled domain.Reservation
	err := engine.Retry(ctx, d.retry, func() error {
		var err error
		cancelled, err = d.engine.Cancel(ctx, req.ReservationID)
		return err
	})
	return cancelled, err
}

func (d *Dispatcher) cancelReservations(ctx context.Context, raw json.RawMessage) (any, error) {
	const op = "cancel reservations"
	var req CancelReservationsPayload
	if err := decodePayload(op, raw, &req); err != nil {
		return nil, err
	}
	if len(req.ReservationIDs) == 0 {
		return nil, domain.E(domain.CodeInvalidArgument, op, "reservationIds is required", nil)
	}
	out := CancelReservationsResponsePayload{Results: make([]CancelOutcome, 0, len(req.ReservationIDs))}
	for _, id := range req.ReservationIDs {
		err := engine.Retry(ctx, d.retry, func() error {
			_, err := d.engine.Cancel(ctx, id)
			return err
		})
		outcome := CancelOutcome{ReservationID: id, OK: err == nil}
		if err != nil {
			outcome.Error = err.Error()
			outcome.Code, _ = domain.CodeFrom(err)
		}
		out.Results = append(out.Results, outcome)
	}
	return out, nil
}
