package resourcedb

import (
	"bytes"
	"strings"

	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
)

func applyFilter(ac tenancy.AccessContext, filter resourcebus.QueryFilter, data map[string]any, buf *bytes.Buffer) {
	wc := []string{tenancy.TenantPredicate(ac, "tenant_id", data)}

	if filter.ID != nil {
		data["resource_id"] = *filter.ID
		wc = append(wc, "resource_id = :resource_id")
	}

	if filter.Name != nil {
		data["name"] = "%" + *filter.Name + "%"
		wc = append(wc, "name ILIKE :name")
	}

	if filter.Kind != nil {
		data["kind"] = filter.Kind.String()
		wc = append(wc, "kind = :kind")
	}

	buf.WriteString(" WHERE ")
	buf.WriteString(strings.Join(wc, " AND "))
}
