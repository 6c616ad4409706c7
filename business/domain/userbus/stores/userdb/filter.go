package userdb

import (
	"bytes"
	"strings"

	"github.com/jcpaschoal/spi-agenda/business/domain/userbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
)

func applyFilter(ac tenancy.AccessContext, filter userbus.QueryFilter, data map[string]any, buf *bytes.Buffer) {
	wc := []string{tenancy.SharedMemberPredicate(ac, "u.user_id", data)}

	if filter.ID != nil {
		data["user_id"] = *filter.ID
		wc = append(wc, "u.user_id = :user_id")
	}

	if filter.Name != nil {
		data["name"] = "%" + filter.Name.String() + "%"
		wc = append(wc, "u.name ILIKE :name")
	}

	if filter.Email != nil {
		data["email"] = "%" + filter.Email.Address + "%"
		wc = append(wc, "u.email ILIKE :email")
	}

	if filter.StartCreatedAt != nil {
		data["start_created_at"] = filter.StartCreatedAt.UTC()
		wc = append(wc, "u.created_at >= :start_created_at")
	}

	if filter.EndCreatedAt != nil {
		data["end_created_at"] = filter.EndCreatedAt.UTC()
		wc = append(wc, "u.created_at <= :end_created_at")
	}

	buf.WriteString(" WHERE ")
	buf.WriteString(strings.Join(wc, " AND "))
}
