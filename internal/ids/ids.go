package ids

import "github.com/segmentio/ksuid"

// New returns a k-sortable identifier used as a primary key.
func New() string {
	return ksuid.New().String()
}
