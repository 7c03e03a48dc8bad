package fleet

import "time"

// Booking identifies one scheduling attempt of a step: who asked for it,
// when, and the earliest moment it may begin.
type Booking struct {
	ID            string    `json:"id"`
	Requester     string    `json:"requester"`
	RequestTime   time.Time `json:"request_time"`
	EarliestStart time.Time `json:"earliest_start"`
	Priority      int       `json:"priority"`
	// Automatic marks bookings generated by the fleet itself rather than a
	// human dispatcher.
	Automatic bool `json:"automatic"`
}

// Request pairs a Booking with the Description of the step being booked.
type Request struct {
	Booking     Booking
	Description Description
}
