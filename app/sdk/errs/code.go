package errs

// ErrCode represents an error code in the system.
type ErrCode struct {
	value int
}

// Value returns the integer value of the error code.
func (ec ErrCode) Value() int {
	return ec.value
}

// String returns the string representation of the error code.
func (ec ErrCode) String() string {
	return codeNames[ec]
}

// UnmarshalText implement the unmarshal interface for JSON conversions.
func (ec *ErrCode) UnmarshalText(data []byte) error {
	errName := string(data)

	v, exists := codeNumbers[errName]
	if !exists {
		return nil
	}

	*ec = v

	return nil
}

// MarshalText implement the marshal interface for JSON conversions.
func (ec ErrCode) MarshalText() ([]byte, error) {
	return []byte(ec.String()), nil
}

// Equal provides support for the go-cmp package and testing.
func (ec ErrCode) Equal(ec2 ErrCode) bool {
	return ec.value == ec2.value
}

// The set of error codes used by the app layer.
var (
	OK                 = ErrCode{value: 0}
	NoContent          = ErrCode{value: 1}
	Canceled           = ErrCode{value: 2}
	Unknown            = ErrCode{value: 3}
	InvalidArgument    = ErrCode{value: 4}
	DeadlineExceeded   = ErrCode{value: 5}
	NotFound           = ErrCode{value: 6}
	AlreadyExists      = ErrCode{value: 7}
	PermissionDenied   = ErrCode{value: 8}
	ResourceExhausted  = ErrCode{value: 9}
	FailedPrecondition = ErrCode{value: 10}
	Aborted            = ErrCode{value: 11}
	OutOfRange         = ErrCode{value: 12}
	Unimplemented      = ErrCode{value: 13}
	Internal           = ErrCode{value: 14}
	Unavailable        = ErrCode{value: 15}
	DataLoss           = ErrCode{value: 16}
	Unauthenticated    = ErrCode{value: 17}
	TooManyRequests    = ErrCode{value: 18}
	InternalOnlyLog    = ErrCode{value: 19}
)

var codeNumbers = map[string]ErrCode{
	"ok":                  OK,
	"no_content":          NoContent,
	"canceled":            Canceled,
	"unknown":             Unknown,
	"invalid_argument":    InvalidArgument,
	"deadline_exceeded":   DeadlineExceeded,
	"not_found":           NotFound,
	"already_exists":      AlreadyExists,
	"permission_denied":   PermissionDenied,
	"resource_exhausted":  ResourceExhausted,
	"failed_precondition": FailedPrecondition,
	"aborted":             Aborted,
	"out_of_range":        OutOfRange,
	"unimplemented":       Unimplemented,
	"internal":            Internal,
	"unavailable":         Unavailable,
	"data_loss":           DataLoss,
	"unauthenticated":     Unauthenticated,
	"too_many_requests":   TooManyRequests,
	"internal_only_log":   InternalOnlyLog,
}

var codeNames map[ErrCode]string

func init() {
	codeNames = make(map[ErrCode]string, len(codeNumbers))
	for k, v := range codeNumbers {
		codeNames[v] = k
	}
}

var httpStatus = map[ErrCode]int{
	OK:                 200,
	NoContent:          204,
	Canceled:           499,
	Unknown:            500,
	InvalidArgument:    400,
	DeadlineExceeded:   504,
	NotFound:           404,
	AlreadyExists:      409,
	PermissionDenied:   403,
	ResourceExhausted:  429,
	FailedPrecondition: 400,
	Aborted:            409,
	OutOfRange:         400,
	Unimplemented:      501,
	Internal:           500,
	Unavailable:        503,
	DataLoss:           500,
	Unauthenticated:    401,
	TooManyRequests:    429,
	InternalOnlyLog:    500,
}
