package outcome

import "github.com/talx-hub/gopher-billpay/internal/model"

type Kind string

const (
	KindSuccess Kind = "success"
	KindNoData  Kind = "no_data"
	KindError   Kind = "error"
)

// Outcome is the definitive result of processing one code.
type Outcome struct {
	Details any
	Kind    Kind
	Notes   string
	Amount  model.Amount
}

func Success(amount model.Amount, notes string, details any) Outcome {
	return Outcome{Kind: KindSuccess, Amount: amount, Notes: notes, Details: details}
}

// NoData is a completed lookup with nothing to pay.
func NoData(notes string) Outcome {
	return Outcome{Kind: KindNoData, Amount: model.NewAmount(0), Notes: notes}
}

func Failure(notes string) Outcome {
	return Outcome{Kind: KindError, Amount: model.NewAmount(0), Notes: notes}
}

func (o Outcome) IsError() bool {
	return o.Kind == KindError
}

// Status is the fixed textual status shown in exports.
func (o Outcome) Status() string {
	if o.IsError() {
		return model.StatusIncomplete
	}
	return model.StatusComplete
}

// Row is one line of a batch result.
type Row struct {
	Code   string       `json:"code"`
	Status string       `json:"status"`
	Notes  string       `json:"notes"`
	Amount model.Amount `json:"amount"`
}

func NewRow(code string, o Outcome) Row {
	return Row{
		Code:   code,
		Amount: o.Amount,
		Status: o.Status(),
		Notes:  o.Notes,
	}
}
