//go:build !(sqlite_vec && cgo)

package store

import (
	"database/sql/driver"
	"fmt"

	sqlite "modernc.org/sqlite"
)

// Pure-Go build: modernc SQLite with a Go cosine distance function.
const (
	driverName   = "sqlite"
	distanceFunc = "vector_distance_cos"
	backendName  = "modernc"
)

func init() {
	if err := sqlite.RegisterDeterministicScalarFunction(distanceFunc, 2, vectorDistanceCos); err != nil {
		panic(fmt.Sprintf("store: register %s: %v", distanceFunc, err))
	}
}

func vectorDistanceCos(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, err := decodeVector(args[0])
	if err != nil {
		return nil, err
	}
	b, err := decodeVector(args[1])
	if err != nil {
		return nil, err
	}
	return cosineDistance(a, b)
}

func encodeVector(v []float32) ([]byte, error) {
	return encodeLE(v), nil
}
