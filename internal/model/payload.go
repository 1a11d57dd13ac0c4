package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Payload is the type-specific body of a Request. Routing and the lifecycle never look
// inside it; it only feeds titles and the typed views of the UI.
type Payload interface {
	Kind() string
	Summary() string
}

type LeavePayload struct {
	LeaveType string `json:"leave_type"`
	FromDate  string `json:"from_date"`
	ToDate    string `json:"to_date"`
	Days      int    `json:"days"`
	Reason    string `json:"reason"`
}

func (LeavePayload) Kind() string { return RequestTypeLeave }
func (p LeavePayload) Summary() string {
	label := "Leave"
	if p.LeaveType != "" {
		label = titleCase(p.LeaveType) + " leave"
	}
	if p.FromDate != "" && p.ToDate != "" {
		return fmt.Sprintf("%s: %s to %s", label, p.FromDate, p.ToDate)
	}
	return label + " request"
}

type GatePassPayload struct {
	Date     string `json:"date"`
	OutTime  string `json:"out_time"`
	InTime   string `json:"in_time"`
	Purpose  string `json:"purpose"`
	Official bool   `json:"official"`
}

func (GatePassPayload) Kind() string { return RequestTypeGatePass }
func (p GatePassPayload) Summary() string {
	if p.Date != "" {
		return "Gate pass for " + p.Date
	}
	return "Gate pass request"
}

type ResignationPayload struct {
	LastWorkingDay string `json:"last_working_day"`
	NoticeDays     int    `json:"notice_days"`
	Reason         string `json:"reason"`
}

func (ResignationPayload) Kind() string { return RequestTypeResignation }
func (p ResignationPayload) Summary() string {
	if p.LastWorkingDay != "" {
		return "Resignation, last working day " + p.LastWorkingDay
	}
	return "Resignation request"
}

type DocumentPayload struct {
	DocumentType string `json:"document_type"`
	Copies       int    `json:"copies"`
	Purpose      string `json:"purpose"`
}

func (DocumentPayload) Kind() string { return RequestTypeDocument }
func (p DocumentPayload) Summary() string {
	if p.DocumentType != "" {
		return "Document request: " + p.DocumentType
	}
	return "Document request"
}

type AssetPayload struct {
	AssetType string `json:"asset_type"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

func (AssetPayload) Kind() string { return RequestTypeAsset }
func (p AssetPayload) Summary() string {
	if p.AssetType != "" {
		return "Asset request: " + p.AssetType
	}
	return "Asset request"
}

type SIMPayload struct {
	Operator string `json:"operator"`
	Plan     string `json:"plan"`
	Reason   string `json:"reason"`
}

func (SIMPayload) Kind() string { return RequestTypeSIM }
func (p SIMPayload) Summary() string {
	if p.Operator != "" {
		return "SIM card request (" + p.Operator + ")"
	}
	return "SIM card request"
}

// TransportPayload covers transport, bus and parking requests.
type TransportPayload struct {
	Route        string `json:"route"`
	PickupPoint  string `json:"pickup_point"`
	VehicleNo    string `json:"vehicle_no"`
	VehicleType  string `json:"vehicle_type"`
	EffectiveDay string `json:"effective_date"`
}

func (TransportPayload) Kind() string { return RequestTypeTransport }
func (p TransportPayload) Summary() string {
	switch {
	case p.Route != "":
		return "Transport on route " + p.Route
	case p.VehicleNo != "":
		return "Parking for " + p.VehicleNo
	}
	return "Transport request"
}

type UniformPayload struct {
	Items []UniformItem `json:"items"`
}

type UniformItem struct {
	Item     string `json:"item"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

func (UniformPayload) Kind() string { return RequestTypeUniform }
func (p UniformPayload) Summary() string {
	if n := len(p.Items); n > 0 {
		return fmt.Sprintf("Uniform request (%d item(s))", n)
	}
	return "Uniform request"
}

type CanteenPayload struct {
	CouponCount int             `json:"coupon_count"`
	MealType    string          `json:"meal_type"`
	Amount      decimal.Decimal `json:"amount"`
}

func (CanteenPayload) Kind() string { return RequestTypeCanteen }
func (p CanteenPayload) Summary() string {
	if p.CouponCount > 0 {
		return fmt.Sprintf("Canteen coupons x%d", p.CouponCount)
	}
	return "Canteen request"
}

type GuestHousePayload struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Guests   int    `json:"guests"`
	Purpose  string `json:"purpose"`
}

func (GuestHousePayload) Kind() string { return RequestTypeGuestHouse }
func (p GuestHousePayload) Summary() string {
	if p.CheckIn != "" {
		return "Guest house from " + p.CheckIn
	}
	return "Guest house request"
}

type WelfarePayload struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Details  string          `json:"details"`
}

func (WelfarePayload) Kind() string { return RequestTypeWelfare }
func (p WelfarePayload) Summary() string {
	if p.Category != "" {
		return "Welfare request: " + p.Category
	}
	return "Welfare request"
}

type LoanPayload struct {
	Amount       decimal.Decimal `json:"amount"`
	TenureMonths int             `json:"tenure_months"`
	Purpose      string          `json:"purpose"`
}

func (LoanPayload) Kind() string { return RequestTypeLoan }
func (p LoanPayload) Summary() string {
	if p.Amount.IsPositive() {
		return "Loan of " + p.Amount.StringFixed(2)
	}
	return "Loan request"
}

// EMI returns the flat monthly instalment, or zero when the tenure is unset.
func (p LoanPayload) EMI() decimal.Decimal {
	if p.TenureMonths <= 0 {
		return decimal.Zero
	}
	return p.Amount.Div(decimal.NewFromInt(int64(p.TenureMonths))).Round(2)
}

// MRFPayload is a manpower requisition.
type MRFPayload struct {
	Position      string `json:"position"`
	Openings      int    `json:"openings"`
	Justification string `json:"justification"`
}

func (MRFPayload) Kind() string { return RequestTypeMRF }
func (p MRFPayload) Summary() string {
	if p.Position != "" {
		return fmt.Sprintf("Manpower requisition: %s x%d", p.Position, max(p.Openings, 1))
	}
	return "Manpower requisition"
}

// JFPayload is a joining formality checklist.
type JFPayload struct {
	CandidateName string `json:"candidate_name"`
	JoiningDate   string `json:"joining_date"`
}

func (JFPayload) Kind() string { return RequestTypeJF }
func (p JFPayload) Summary() string {
	if p.CandidateName != "" {
		return "Joining formalities: " + p.CandidateName
	}
	return "Joining formalities"
}

type InterviewPayload struct {
	CandidateName string `json:"candidate_name"`
	Position      string `json:"position"`
	ScheduledAt   string `json:"scheduled_at"`
}

func (InterviewPayload) Kind() string { return RequestTypeInterview }
func (p InterviewPayload) Summary() string {
	if p.CandidateName != "" {
		return "Interview: " + p.CandidateName
	}
	return "Interview request"
}

// GenericPayload holds bodies of types without a dedicated shape.
type GenericPayload struct {
	Type   string
	Fields map[string]interface{}
}

func (p GenericPayload) Kind() string { return p.Type }
func (p GenericPayload) Summary() string {
	return DefaultTitle(p.Type)
}

// DecodePayload decodes raw into the payload variant for requestType.
// Empty input yields a GenericPayload; malformed JSON yields an error.
func DecodePayload(requestType string, raw []byte) (Payload, error) {
	var p Payload
	switch requestType {
	case RequestTypeLeave:
		p = &LeavePayload{}
	case RequestTypeGatePass:
		p = &GatePassPayload{}
	case RequestTypeResignation:
		p = &ResignationPayload{}
	case RequestTypeDocument:
		p = &DocumentPayload{}
	case RequestTypeAsset:
		p = &AssetPayload{}
	case RequestTypeSIM, RequestTypeSIMCard:
		p = &SIMPayload{}
	case RequestTypeTransport, RequestTypeBus, RequestTypeParking:
		p = &TransportPayload{}
	case RequestTypeUniform:
		p = &UniformPayload{}
	case RequestTypeCanteen:
		p = &CanteenPayload{}
	case RequestTypeGuestHouse, RequestTypeGuestHouse2:
		p = &GuestHousePayload{}
	case RequestTypeWelfare:
		p = &WelfarePayload{}
	case RequestTypeLoan:
		p = &LoanPayload{}
	case RequestTypeMRF:
		p = &MRFPayload{}
	case RequestTypeJF:
		p = &JFPayload{}
	case RequestTypeInterview:
		p = &InterviewPayload{}
	default:
		fields := map[string]interface{}{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &fields); err != nil {
				return nil, fmt.Errorf("decode %s payload: %w", requestType, err)
			}
		}
		return GenericPayload{Type: requestType, Fields: fields}, nil
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", requestType, err)
		}
	}
	return p, nil
}

// DefaultTitle is the title used when neither the caller nor the payload provides one.
func DefaultTitle(requestType string) string {
	if requestType == "" {
		return "Request"
	}
	return titleCase(strings.ReplaceAll(requestType, "_", " ")) + " Request"
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
