package domain

import "time"

// Observation is one polled row together with the model's verdict on it,
// as seen by a watching client.
type Observation struct {
	Seq       int64
	At        time.Time
	Mode      Category
	Row       FeatureRow
	Actual    string // row label, empty when the sample carried none
	Predicted string
	Latency   time.Duration
	Err       string
}

// Match reports whether the prediction agrees with the row's label. Rows
// without a label never match.
func (o *Observation) Match() bool {
	return o.Err == "" && o.Actual != "" && o.Actual == o.Predicted
}

// ActualCategory maps fine-grained NSL-KDD labels onto the five replay
// categories when the label already names one; otherwise it returns "".
func (o *Observation) ActualCategory() Category {
	c, err := ParseCategory(o.Actual)
	if err != nil {
		return ""
	}
	return c
}
