package main

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/mmindustry/forge_backend/models"
	"github.com/shopspring/decimal"
)

func TestItemRow_CarriesTotalCost(t *testing.T) {
	summary := &models.ProfitItemSummary{
		TypeId:        100,
		TypeName:      "Widget",
		TotalMaterial: decimal.NewFromInt(600),
		TotalInstall:  decimal.NewFromInt(120),
		TotalTax:      decimal.RequireFromString("64.8"),
	}
	row := itemRow{
		ProfitItemSummary: summary,
		TotalCost:         summary.TotalMaterial.Add(summary.TotalInstall).Add(summary.TotalTax).String(),
	}

	raw, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, ok := payload["total_cost"].(string); !ok || got != "784.8" {
		t.Fatalf("expected total_cost 784.8, got %v", payload["total_cost"])
	}
	// Embedded summary fields must stay flattened alongside it.
	if _, ok := payload["total_material_cost"]; !ok {
		t.Fatal("expected embedded summary fields in row payload")
	}
}

func TestRecomputeTriggerRequest_BindingRules(t *testing.T) {
	v := validator.New()
	v.SetTagName("binding")

	if err := v.Struct(recomputeTriggerRequest{}); err != nil {
		t.Fatalf("expected empty body to bind (defaults apply), got %v", err)
	}
	if err := v.Struct(recomputeTriggerRequest{LookbackDays: 90}); err != nil {
		t.Fatalf("expected in-range lookback to bind, got %v", err)
	}
	if err := v.Struct(recomputeTriggerRequest{LookbackDays: 400}); err == nil {
		t.Fatal("expected out-of-range lookback to fail binding")
	}
}
