package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"patient-portal-server/internal/domain"
)

// NewReference builds a payment reference of the form
// {APP}_{PROVIDER}_{unixmilli}_{random}. The millisecond timestamp plus a
// random suffix makes collisions practically impossible; uniqueness is
// additionally enforced by the primary key.
func NewReference(app string, p domain.Provider) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%d_%s",
		strings.ToUpper(app), strings.ToUpper(string(p)), time.Now().UnixMilli(), suffix)
}
