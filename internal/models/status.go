package models

import (
	"fmt"
	"strconv"
	"strings"
)

type OrderStatus int

const (
	OrderPending   OrderStatus = 1
	OrderCompleted OrderStatus = 2
	OrderRefused   OrderStatus = 3
)

type PaymentStatus int

const (
	PaymentPending   PaymentStatus = 1
	PaymentCompleted PaymentStatus = 2
	PaymentRefused   PaymentStatus = 3
)

// display labels used by the desktop ledger
var (
	orderLabels = map[OrderStatus]string{
		OrderPending:   "بأنتظار المراجعة",
		OrderCompleted: "تم التوصيل",
		OrderRefused:   "مسترجع",
	}
	paymentLabels = map[PaymentStatus]string{
		PaymentPending:   "قيد السداد",
		PaymentCompleted: "تم السداد",
		PaymentRefused:   "لم يسدد",
	}
	statusNames = map[int]string{1: "Pending", 2: "Completed", 3: "Refused"}
)

func (s OrderStatus) String() string {
	return statusNames[int(s)]
}

func (s OrderStatus) Label() string {
	return orderLabels[s]
}

func (s OrderStatus) Valid() bool {
	return s >= OrderPending && s <= OrderRefused
}

func (s PaymentStatus) String() string {
	return statusNames[int(s)]
}

func (s PaymentStatus) Label() string {
	return paymentLabels[s]
}

func (s PaymentStatus) Valid() bool {
	return s >= PaymentPending && s <= PaymentRefused
}

// ParseOrderStatus accepts the English name, the numeric code or the display label.
func ParseOrderStatus(text string) (OrderStatus, error) {
	code, err := parseStatus(text)
	if err == nil {
		return OrderStatus(code), nil
	}
	for s, label := range orderLabels {
		if label == strings.TrimSpace(text) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown order status %q", text)
}

// ParsePaymentStatus accepts the English name, the numeric code or the display label.
func ParsePaymentStatus(text string) (PaymentStatus, error) {
	code, err := parseStatus(text)
	if err == nil {
		return PaymentStatus(code), nil
	}
	for s, label := range paymentLabels {
		if label == strings.TrimSpace(text) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown payment status %q", text)
}

func parseStatus(text string) (int, error) {
	s := strings.TrimSpace(text)
	if n, err := strconv.Atoi(s); err == nil {
		if _, ok := statusNames[n]; ok {
			return n, nil
		}
		return 0, fmt.Errorf("status code %d out of range", n)
	}
	for code, name := range statusNames {
		if strings.EqualFold(name, s) {
			return code, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", text)
}
