package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent         = "event"
	FieldPoolID        = "poolID"
	FieldReservationID = "reservationID"
	FieldUserID        = "userID"
	FieldMachineCount  = "machineCount"
	FieldWindowStart   = "windowStart"
	FieldWindowEnd     = "windowEnd"
	FieldDurationMs    = "duration_ms"
	FieldRequestID     = "request_id"
	FieldTraceID       = "trace_id"
	FieldSpanID        = "span_id"
)

const (
	EventReservationCreated   = "reservation_created"
	EventReservationRejected  = "reservation_rejected"
	EventReservationEdited    = "reservation_edited"
	EventReservationCancelled = "reservation_cancelled"
	EventPoolCreated          = "pool_created"
	EventPoolUpdated          = "pool_updated"
	EventPoolRemoved          = "pool_removed"
	EventLockContention       = "lock_contention"
	EventConfigReload         = "config_reload"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func PoolIDField(poolID string) zap.Field {
	return zap.String(FieldPoolID, poolID)
}

func ReservationIDField(id string) zap.Field {
	return zap.String(FieldReservationID, id)
}

func UserIDField(userID string) zap.Field {
	return zap.String(FieldUserID, userID)
}

func MachineCountField(count int) zap.Field {
	return zap.Int(FieldMachineCount, count)
}

// WindowFields renders a reservation window as two RFC3339 fields.
func WindowFields(start, end time.Time) []zap.Field {
	return []zap.Field{
		zap.String(FieldWindowStart, start.UTC().Format(time.RFC3339)),
		zap.String(FieldWindowEnd, end.UTC().Format(time.RFC3339)),
	}
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func RequestIDField(value string) zap.Field {
	return zap.String(FieldRequestID, value)
}

func TraceIDField(value string) zap.Field {
	return zap.String(FieldTraceID, value)
}

func SpanIDField(value string) zap.Field {
	return zap.String(FieldSpanID, value)
}
