package server

import (
	"github.com/rushteam/churnkit/core"
)

// CustomerRequest 是单个客户的请求体，字段名即外部字段名。
// 负数不在这里拦截，由数据质量检查告警。
type CustomerRequest struct {
	CallFailure           *float64 `json:"Call_Failure" validate:"required"`
	Complains             *float64 `json:"Complains" validate:"required,min=0,max=1"`
	SubscriptionLength    *float64 `json:"Subscription_Length" validate:"required"`
	ChargeAmount          *float64 `json:"Charge_Amount" validate:"required"`
	SecondsOfUse          *float64 `json:"Seconds_of_Use" validate:"required"`
	FrequencyOfUse        *float64 `json:"Frequency_of_use" validate:"required"`
	FrequencyOfSMS        *float64 `json:"Frequency_of_SMS" validate:"required"`
	DistinctCalledNumbers *float64 `json:"Distinct_Called_Numbers" validate:"required"`
	AgeGroup              *float64 `json:"Age_Group" validate:"required,min=1,max=5"`
	TariffPlan            *float64 `json:"Tariff_Plan" validate:"required,min=1,max=2"`
	Status                *float64 `json:"Status" validate:"required,min=1,max=2"`
	Age                   *float64 `json:"Age" validate:"required"`
	CustomerValue         *float64 `json:"Customer_Value" validate:"required"`
}

// Record 转为原始记录
func (c *CustomerRequest) Record() core.RawRecord {
	return core.RawRecord{
		"Call_Failure":            *c.CallFailure,
		"Complains":               *c.Complains,
		"Subscription_Length":     *c.SubscriptionLength,
		"Charge_Amount":           *c.ChargeAmount,
		"Seconds_of_Use":          *c.SecondsOfUse,
		"Frequency_of_use":        *c.FrequencyOfUse,
		"Frequency_of_SMS":        *c.FrequencyOfSMS,
		"Distinct_Called_Numbers": *c.DistinctCalledNumbers,
		"Age_Group":               *c.AgeGroup,
		"Tariff_Plan":             *c.TariffPlan,
		"Status":                  *c.Status,
		"Age":                     *c.Age,
		"Customer_Value":          *c.CustomerValue,
	}
}

// BatchRequest 批量请求体
type BatchRequest struct {
	Customers []CustomerRequest `json:"customers" validate:"required,dive"`
}

// Records 转为原始记录
func (b *BatchRequest) Records() []core.RawRecord {
	out := make([]core.RawRecord, len(b.Customers))
	for i := range b.Customers {
		out[i] = b.Customers[i].Record()
	}
	return out
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Detail    string            `json:"detail"`
	Code      string            `json:"code,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}
