package entity

import "time"

type PseudonymMapping struct {
	RawID     string    `json:"raw_id"`
	Pseudonym string    `json:"pseudonym"`
	CreatedAt time.Time `json:"created_at"`
}
