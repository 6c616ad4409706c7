package auditapp

import (
	"net/http"
	"time"

	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
	"github.com/jcpaschoal/spi-agenda/business/types/auditop"
)

type queryParams struct {
	Page      string
	Rows      string
	OrderBy   string
	Entity    string
	EntityKey string
	Op        string
	StartDate string
	EndDate   string
}

func parseQueryParams(r *http.Request) queryParams {
	values := r.URL.Query()

	return queryParams{
		Page:      values.Get("page"),
		Rows:      values.Get("rows"),
		OrderBy:   values.Get("orderBy"),
		Entity:    values.Get("entity"),
		EntityKey: values.Get("entity_key"),
		Op:        values.Get("op"),
		StartDate: values.Get("start_date"),
		EndDate:   values.Get("end_date"),
	}
}

func parseFilter(qp queryParams) (auditbus.QueryFilter, error) {
	var fieldErrors errs.FieldErrors
	var filter auditbus.QueryFilter

	if qp.Entity != "" {
		filter.Entity = &qp.Entity
	}

	if qp.EntityKey != "" {
		filter.EntityKey = &qp.EntityKey
	}

	if qp.Op != "" {
		op, err := auditop.Parse(qp.Op)
		switch err {
		case nil:
			filter.Op = &op
		default:
			fieldErrors.Add("op", err)
		}
	}

	if qp.StartDate != "" {
		t, err := time.Parse(time.RFC3339, qp.StartDate)
		switch err {
		case nil:
			filter.StartDate = &t
		default:
			fieldErrors.Add("start_date", err)
		}
	}

	if qp.EndDate != "" {
		t, err := time.Parse(time.RFC3339, qp.EndDate)
		switch err {
		case nil:
			filter.EndDate = &t
		default:
			fieldErrors.Add("end_date", err)
		}
	}

	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		fieldErrors.Add("end_date", errEndBeforeStart)
	}

	if fieldErrors != nil {
		return auditbus.QueryFilter{}, fieldErrors.ToError()
	}

	return filter, nil
}
