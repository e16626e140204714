package models

// TableRole is the semantic role assigned to one HTML table on a fetched
// page. Roles are assigned from table content, never from document order.
type TableRole string

const (
	TableRoleCurrentPrices TableRole = "current_prices"
	TableRoleDailyPrices   TableRole = "daily_prices"
	TableRoleOwnership     TableRole = "ownership"
	TableRoleLoading       TableRole = "loading"
	TableRoleUnknown       TableRole = "unknown"
)

func (r TableRole) String() string {
	return string(r)
}
