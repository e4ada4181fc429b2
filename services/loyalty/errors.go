package loyalty

import (
	"errors"
	"strconv"

	"loyaltyhub/pkg/errutil"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	reasonUnknown   = "not found for this customer"
	reasonRedeemed  = "already redeemed"
	reasonExpired   = "expired"
	reasonDuplicate = "listed more than once"
	reasonMalformed = "malformed voucher id"
)

// InvalidVoucher names the offending voucher id in the error details.
func InvalidVoucher(id, reason string) error {
	return errutil.UnprocessableEntity("invalid voucher", nil,
		errutil.WithDetails(errutil.Detail{Field: "voucher_ids", Message: id + ": " + reason}))
}

func invalidVoucher(id int64, reason string) error {
	return InvalidVoucher(strconv.FormatInt(id, 10), reason)
}

// ParseVoucherIDs converts voucher ids received as text, rejecting the first
// one that is not a positive integer.
func ParseVoucherIDs(raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		if r == "" {
			continue
		}
		id, err := strconv.ParseInt(r, 10, 64)
		if err != nil || id <= 0 {
			return nil, InvalidVoucher(r, reasonMalformed)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// transient reports serialization failures and deadlocks, which a caller may
// resolve by resubmitting the purchase.
func transient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
