//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// cgo build: mattn SQLite with the sqlite-vec extension auto-loaded.
const (
	driverName   = "sqlite3"
	distanceFunc = "vec_distance_cosine"
	backendName  = "sqlite-vec"
)

func init() {
	vec.Auto()
}

func encodeVector(v []float32) ([]byte, error) {
	return vec.SerializeFloat32(v)
}
