package auditdb

import (
	"bytes"
	"strings"

	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
)

func applyFilter(ac tenancy.AccessContext, filter auditbus.QueryFilter, data map[string]any, buf *bytes.Buffer) {
	wc := []string{tenancy.TenantPredicate(ac, "tenant_id", data)}

	if filter.Entity != nil {
		data["entity_name"] = *filter.Entity
		wc = append(wc, "entity_name = :entity_name")
	}

	if filter.EntityKey != nil {
		data["entity_id"] = *filter.EntityKey
		wc = append(wc, "entity_id = :entity_id")
	}

	if filter.Op != nil {
		data["operation"] = filter.Op.String()
		wc = append(wc, "operation = :operation")
	}

	if filter.StartDate != nil {
		data["start_date"] = filter.StartDate.UTC()
		wc = append(wc, "created_at >= :start_date")
	}

	if filter.EndDate != nil {
		data["end_date"] = filter.EndDate.UTC()
		wc = append(wc, "created_at < :end_date")
	}

	buf.WriteString(" WHERE ")
	buf.WriteString(strings.Join(wc, " AND "))
}
