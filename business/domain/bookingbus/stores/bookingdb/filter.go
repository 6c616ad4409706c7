package bookingdb

import (
	"bytes"
	"strings"

	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
)

func applyFilter(ac tenancy.AccessContext, filter bookingbus.QueryFilter, data map[string]any, buf *bytes.Buffer) {
	wc := []string{tenancy.TenantPredicate(ac, "tenant_id", data)}

	if filter.ID != nil {
		data["booking_id"] = *filter.ID
		wc = append(wc, "booking_id = :booking_id")
	}

	if filter.ResourceID != nil {
		data["resource_id"] = *filter.ResourceID
		wc = append(wc, "resource_id = :resource_id")
	}

	if filter.Status != nil {
		data["status"] = filter.Status.String()
		wc = append(wc, "status = :status")
	}

	if filter.StartsAfter != nil {
		data["starts_after"] = filter.StartsAfter.UTC()
		wc = append(wc, "starts_at >= :starts_after")
	}

	if filter.EndsBefore != nil {
		data["ends_before"] = filter.EndsBefore.UTC()
		wc = append(wc, "ends_at <= :ends_before")
	}

	if filter.CustomerEmail != nil {
		data["customer_email"] = strings.ToLower(*filter.CustomerEmail)
		wc = append(wc, "customer_email = :customer_email")
	}

	buf.WriteString(" WHERE ")
	buf.WriteString(strings.Join(wc, " AND "))
}
