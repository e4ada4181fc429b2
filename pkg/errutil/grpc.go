package errutil

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GRPCCode maps the CoreStatus onto a gRPC code.
func (s CoreStatus) GRPCCode() codes.Code {
	switch s {
	case StatusUnauthorized:
		return codes.Unauthenticated
	case StatusForbidden:
		return codes.PermissionDenied
	case StatusNotFound:
		return codes.NotFound
	case StatusTimeout, StatusGatewayTimeout:
		return codes.DeadlineExceeded
	case StatusUnprocessableEntity:
		return codes.FailedPrecondition
	case StatusUnsupportedMediaType, StatusBadRequest, StatusValidationFailed:
		return codes.InvalidArgument
	case StatusConflict:
		// a conflicting purchase may be resubmitted as is
		return codes.Aborted
	case StatusTooManyRequests:
		return codes.ResourceExhausted
	case StatusClientClosedRequest:
		return codes.Canceled
	case StatusNotImplemented:
		return codes.Unimplemented
	case StatusBadGateway, StatusServiceUnavailable:
		return codes.Unavailable
	case StatusInternal:
		return codes.Internal
	default:
		return codes.Unknown
	}
}

// GRPCStatus renders the error as a gRPC status. Field details become
// BadRequest violations for invalid input and PreconditionFailure violations
// for rejected vouchers. Internal causes stay out of the message, as in JSON.
func (e BaseError) GRPCStatus() *status.Status {
	code := e.Code.GRPCCode()
	msg := e.messageWithErr()
	if code == codes.Internal || code == codes.Unknown {
		msg = e.Message
	}

	st := status.New(code, msg)
	if len(e.Details) == 0 {
		return st
	}

	var (
		withDetails *status.Status
		err         error
	)
	switch code {
	case codes.InvalidArgument:
		br := &errdetails.BadRequest{}
		for _, d := range e.Details {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
				Field:       d.Field,
				Description: d.Message,
			})
		}
		withDetails, err = st.WithDetails(br)
	case codes.FailedPrecondition:
		pf := &errdetails.PreconditionFailure{}
		for _, d := range e.Details {
			pf.Violations = append(pf.Violations, &errdetails.PreconditionFailure_Violation{
				Type:        string(e.Code),
				Subject:     d.Field,
				Description: d.Message,
			})
		}
		withDetails, err = st.WithDetails(pf)
	default:
		return st
	}
	if err != nil {
		return st
	}
	return withDetails
}

// ToGRPCError converts err into a gRPC status error for handlers to return.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	return From(err).GRPCStatus().Err()
}
