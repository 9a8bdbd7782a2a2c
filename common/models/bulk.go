package models

// BulkOperationResult aggregates the outcome of a bulk operation. Items are
// processed independently in input order; one failure never affects another,
// so Successful+Failed always equals the number of requested ids.
type BulkOperationResult struct {
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
}

// Record tallies one per-item outcome
func (r *BulkOperationResult) Record(err error) {
	if err != nil {
		r.Failed++
		r.Errors = append(r.Errors, err.Error())
		return
	}
	r.Successful++
}
