package dto

import "time"

// BufferedFrame holds an encoded frame before flushing to disk.
type BufferedFrame struct {
	Timestamp time.Time
	Camera    string
	Data      []byte
}
