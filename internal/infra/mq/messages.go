// Package mq serves engine commands received over RabbitMQ.
package mq

import (
	"encoding/json"
	"time"

	"vmpool/internal/domain"
)

type CommandType string

const (
	CommandCheckAvailability  CommandType = "CheckAvailability"
	CommandCreateReservation  CommandType = "CreateReservation"
	CommandEditReservation    CommandType = "EditReservation"
	CommandCancelReservation  CommandType = "CancelReservation"
	CommandCancelReservations CommandType = "CancelReservations"
)

// CommandEnvelope is the body of every message on the command queue.
type CommandEnvelope struct {
	Type    CommandType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type CheckAvailabilityPayload struct {
	PoolID string    `json:"poolId"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

type CreateReservationPayload struct {
	PoolID       string    `json:"poolId"`
	UserID       string    `json:"userId"`
	MachineCount int       `json:"machineCount"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

type EditReservationPayload struct {
	ReservationID string     `json:"reservationId"`
	Start         *time.Time `json:"start,omitempty"`
	End           *time.Time `json:"end,omitempty"`
	MachineCount  *int       `json:"machineCount,omitempty"`
}

type CancelReservationPayload struct {
	ReservationID string `json:"reservationId"`
}

type CancelReservationsPayload struct {
	ReservationIDs []string `json:"reservationIds"`
}

type AvailabilityResponsePayload struct {
	PoolID    string `json:"poolId"`
	Available int    `json:"available"`
}

type CancelOutcome struct {
	ReservationID string           `json:"reservationId"`
	OK            bool             `json:"ok"`
	Error         string           `json:"error,omitempty"`
	Code          domain.ErrorCode `json:"code,omitempty"`
}

type CancelReservationsResponsePayload struct {
	Results []CancelOutcome `json:"results"`
}

// Response is published to the ReplyTo queue of a command.
type Response struct {
	OK      bool             `json:"ok"`
	Error   string           `json:"error,omitempty"`
	Code    domain.ErrorCode `json:"code,omitempty"`
	Type    string           `json:"type"`
	Payload json.RawMessage  `json:"payload,omitempty"`
}
