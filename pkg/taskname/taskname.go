package taskname

const (
	// Loyalty tasks
	VoucherIssued = "loyalty:voucher_issued"
)
