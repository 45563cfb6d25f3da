package tenant

import (
	"database/sql"

	"subscription_notifier/internal/domain/calendar"
)

// Tenant is the read model of an account, owned by the tenant service.
// CurrentCycleStart/End are denormalized from the tenant's cycles.
type Tenant struct {
	ID                int64
	DisplayName       string
	ContactEmail      sql.NullString // To handle accounts without a contact address
	CurrentCycleStart *calendar.Date
	CurrentCycleEnd   *calendar.Date
}
