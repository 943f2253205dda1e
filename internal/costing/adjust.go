package costing

// AdjustedQuantity converts the quantity entered on a line item into the
// raw quantity that must be charged for it, compensating for cooking
// loss (IC) and inedible trim (IPC). Both indices are percentages; at
// 100/100 the quantity is unchanged. A zeroed divisor is treated as 1
// so a blank index never divides by zero.
func AdjustedQuantity(quantity, ic, ipc float64, apply bool) float64 {
	if !apply {
		return quantity
	}
	if ic == 100 && ipc == 100 {
		return quantity
	}
	divisor := (ic / 100) * (ipc / 100)
	if divisor == 0 {
		divisor = 1
	}
	return quantity / divisor
}
