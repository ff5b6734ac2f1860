package xid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New returns an opaque identifier of the form "<prefix>-<uuid>".
func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	if prefix == "" {
		return id.String()
	}
	return fmt.Sprintf("%s-%s", prefix, id.String())
}
