package bookingapp

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/types/bookingstatus"
)

type queryParams struct {
	Page          string
	Rows          string
	OrderBy       string
	ID            string
	ResourceID    string
	Status        string
	StartsAfter   string
	EndsBefore    string
	CustomerEmail string
}

func parseQueryParams(r *http.Request) queryParams {
	values := r.URL.Query()

	return queryParams{
		Page:          values.Get("page"),
		Rows:          values.Get("rows"),
		OrderBy:       values.Get("orderBy"),
		ID:            values.Get("booking_id"),
		ResourceID:    values.Get("resource_id"),
		Status:        values.Get("status"),
		StartsAfter:   values.Get("starts_after"),
		EndsBefore:    values.Get("ends_before"),
		CustomerEmail: values.Get("customer_email"),
	}
}

func parseFilter(qp queryParams) (bookingbus.QueryFilter, error) {
	var fieldErrors errs.FieldErrors
	var filter bookingbus.QueryFilter

	if qp.ID != "" {
		id, err := uuid.Parse(qp.ID)
		switch err {
		case nil:
			filter.ID = &id
		default:
			fieldErrors.Add("booking_id", err)
		}
	}

	if qp.ResourceID != "" {
		id, err := uuid.Parse(qp.ResourceID)
		switch err {
		case nil:
			filter.ResourceID = &id
		default:
			fieldErrors.Add("resource_id", err)
		}
	}

	if qp.Status != "" {
		st, err := bookingstatus.Parse(qp.Status)
		switch err {
		case nil:
			filter.Status = &st
		default:
			fieldErrors.Add("status", err)
		}
	}

	if qp.StartsAfter != "" {
		t, err := time.Parse(time.RFC3339, qp.StartsAfter)
		switch err {
		case nil:
			filter.StartsAfter = &t
		default:
			fieldErrors.Add("starts_after", err)
		}
	}

	if qp.EndsBefore != "" {
		t, err := time.Parse(time.RFC3339, qp.EndsBefore)
		switch err {
		case nil:
			filter.EndsBefore = &t
		default:
			fieldErrors.Add("ends_before", err)
		}
	}

	if qp.CustomerEmail != "" {
		addr, err := mail.ParseAddress(qp.CustomerEmail)
		switch err {
		case nil:
			email := strings.ToLower(addr.Address)
			filter.CustomerEmail = &email
		default:
			fieldErrors.Add("customer_email", err)
		}
	}

	if fieldErrors != nil {
		return bookingbus.QueryFilter{}, fieldErrors.ToError()
	}

	return filter, nil
}
