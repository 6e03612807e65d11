package models

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mmindustry/forge_backend/utils"
	"github.com/shopspring/decimal"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func srcPtr(s CostSource) *CostSource { return &s }

func intPtr(n int) *int { return &n }

func TestProfitSettingsPatch_Validate(t *testing.T) {
	cases := []struct {
		name    string
		patch   ProfitSettingsPatch
		wantErr bool
	}{
		{name: "empty patch", patch: ProfitSettingsPatch{}},
		{name: "tax rate zero", patch: ProfitSettingsPatch{TaxRate: decPtr("0")}},
		{name: "tax rate one", patch: ProfitSettingsPatch{TaxRate: decPtr("1")}},
		{name: "tax rate typical", patch: ProfitSettingsPatch{TaxRate: decPtr("0.036")}},
		{name: "tax rate negative", patch: ProfitSettingsPatch{TaxRate: decPtr("-0.01")}, wantErr: true},
		{name: "tax rate above one", patch: ProfitSettingsPatch{TaxRate: decPtr("1.01")}, wantErr: true},
		{name: "cost source market", patch: ProfitSettingsPatch{CostSource: srcPtr(CostSourceMarket)}},
		{name: "cost source project", patch: ProfitSettingsPatch{CostSource: srcPtr(CostSourceProject)}},
		{name: "cost source manual", patch: ProfitSettingsPatch{CostSource: srcPtr(CostSourceManual)}},
		{name: "cost source unknown", patch: ProfitSettingsPatch{CostSource: srcPtr("average")}, wantErr: true},
		{name: "lookback min", patch: ProfitSettingsPatch{LookbackDays: intPtr(1)}},
		{name: "lookback max", patch: ProfitSettingsPatch{LookbackDays: intPtr(365)}},
		{name: "lookback zero", patch: ProfitSettingsPatch{LookbackDays: intPtr(0)}, wantErr: true},
		{name: "lookback over max", patch: ProfitSettingsPatch{LookbackDays: intPtr(366)}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.patch.validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

// bindValidator mirrors how gin runs struct validation on ShouldBindJSON.
func bindValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

func TestProfitSettingsPatch_BindingRules(t *testing.T) {
	v := bindValidator()

	bad := ProfitSettingsPatch{
		CostSource:   srcPtr("average"),
		LookbackDays: intPtr(400),
	}
	fields := utils.ProcessValidationErrors(v.Struct(bad))
	if fields == nil {
		t.Fatal("expected field errors for bad patch, got nil")
	}
	if fields["CostSource"] != "oneof" {
		t.Fatalf("expected CostSource oneof failure, got %q", fields["CostSource"])
	}
	if fields["LookbackDays"] != "max" {
		t.Fatalf("expected LookbackDays max failure, got %q", fields["LookbackDays"])
	}

	good := ProfitSettingsPatch{
		TaxRate:      decPtr("0.036"),
		CostSource:   srcPtr(CostSourceProject),
		LookbackDays: intPtr(90),
	}
	if err := v.Struct(good); err != nil {
		t.Fatalf("expected valid patch to bind, got %v", err)
	}
	if err := v.Struct(ProfitSettingsPatch{}); err != nil {
		t.Fatalf("expected empty patch to bind, got %v", err)
	}
}

func TestProfitSettings_ApplyPatchStampsUpdatedAt(t *testing.T) {
	s := DefaultProfitSettings("u1")
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	updates := s.applyPatch(&ProfitSettingsPatch{LookbackDays: intPtr(60)}, now)
	if s.LookbackDays != 60 {
		t.Fatalf("expected lookback 60, got %d", s.LookbackDays)
	}
	if !s.UpdatedAt.Equal(now) {
		t.Fatalf("expected struct stamped with %s, got %s", now, s.UpdatedAt)
	}
	if got, ok := updates["updated_at"].(time.Time); !ok || !got.Equal(now) {
		t.Fatalf("expected update map stamped with %s, got %v", now, updates["updated_at"])
	}

	// An empty patch must not touch the timestamp.
	before := s.UpdatedAt
	if updates := s.applyPatch(&ProfitSettingsPatch{}, now.Add(time.Hour)); len(updates) != 0 {
		t.Fatalf("expected no updates for empty patch, got %v", updates)
	}
	if !s.UpdatedAt.Equal(before) {
		t.Fatal("empty patch must not restamp updated_at")
	}
}

func TestDefaultProfitSettings(t *testing.T) {
	s := DefaultProfitSettings("u1")
	if !s.TaxRate.Equal(decimal.RequireFromString("0.036")) {
		t.Fatalf("expected default tax rate 0.036, got %s", s.TaxRate)
	}
	if s.CostSource != CostSourceMarket {
		t.Fatalf("expected default cost source market, got %s", s.CostSource)
	}
	if s.LookbackDays != 30 {
		t.Fatalf("expected default lookback 30, got %d", s.LookbackDays)
	}
}
