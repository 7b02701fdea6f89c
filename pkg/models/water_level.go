package models

import "time"

// Station is a Pegel Online gauge together with the identifiers used when tagging its measurements.
type Station struct {
	UUID string
	ID   int
	Name string
}

var (
	KonstanzRhein = Station{
		UUID: "e020e651-e422-46d3-ae28-34887c5a4a8e",
		ID:   3329,
		Name: "Konstanz Rhein",
	}
	KonstanzBodensee = Station{
		UUID: "aa9179c1-17ef-4c61-a48a-74193fa7bfdf",
		ID:   906,
		Name: "Konstanz Bodensee",
	}
)

// Period is an ISO-8601 duration accepted by the Pegel Online measurements endpoint.
type Period string

const (
	PeriodLast24Hours Period = "P1D"
	PeriodLast31Days  Period = "P31D"
)

// WaterLevel is a single gauge reading in centimetres.
type WaterLevel struct {
	Timestamp time.Time
	Value     int
}
