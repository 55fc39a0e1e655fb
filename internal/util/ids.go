package util

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewQueryID generates a public identifier for a query run. These ids appear
// in trace archives and API responses; they are not graph surrogate keys.
func NewQueryID() string {
	id, err := gonanoid.Generate(idAlphabet, 16)
	if err != nil {
		// gonanoid only fails when the platform RNG is unavailable.
		panic(err)
	}
	return "qry_" + id
}

// NewJobID generates a public identifier for a batch query job.
func NewJobID() string {
	id, err := gonanoid.Generate(idAlphabet, 16)
	if err != nil {
		panic(err)
	}
	return "job_" + id
}
