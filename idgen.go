package ssr

import (
	"encoding/base64"

	"github.com/google/uuid"
)

const containerIDPrefix = "react_"

// GenerateContainerID returns a random element id for components rendered
// without one, e.g. "react_3q2-7wEjR0a".
func GenerateContainerID() string {
	id := uuid.New()
	return containerIDPrefix + base64.RawURLEncoding.EncodeToString(id[:])[:11]
}
