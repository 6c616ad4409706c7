package bookingapp

import "github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"

var orderByFields = map[string]string{
	"booking_id":  bookingbus.OrderByID,
	"resource_id": bookingbus.OrderByResourceID,
	"starts_at":   bookingbus.OrderByStartsAt,
	"status":      bookingbus.OrderByStatus,
}
