package resourceapp

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/types/resourcekind"
)

type queryParams struct {
	Page    string
	Rows    string
	OrderBy string
	ID      string
	Name    string
	Kind    string
}

func parseQueryParams(r *http.Request) queryParams {
	values := r.URL.Query()

	return queryParams{
		Page:    values.Get("page"),
		Rows:    values.Get("rows"),
		OrderBy: values.Get("orderBy"),
		ID:      values.Get("resource_id"),
		Name:    values.Get("name"),
		Kind:    values.Get("kind"),
	}
}

func parseFilter(qp queryParams) (resourcebus.QueryFilter, error) {
	var fieldErrors errs.FieldErrors
	var filter resourcebus.QueryFilter

	if qp.ID != "" {
		id, err := uuid.Parse(qp.ID)
		switch err {
		case nil:
			filter.ID = &id
		default:
			fieldErrors.Add("resource_id", err)
		}
	}

	if qp.Name != "" {
		filter.Name = &qp.Name
	}

	if qp.Kind != "" {
		kind, err := resourcekind.Parse(qp.Kind)
		switch err {
		case nil:
			filter.Kind = &kind
		default:
			fieldErrors.Add("kind", err)
		}
	}

	if fieldErrors != nil {
		return resourcebus.QueryFilter{}, fieldErrors.ToError()
	}

	return filter, nil
}
