package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pharmakg/sentinel/pkg/graph"
	"github.com/pharmakg/sentinel/pkg/graph/graphtest"
)

func TestGetDrugAdverseEvents_SortedByFrequency(t *testing.T) {
	store := &graphtest.FakeStore{
		DrugAEs: []graph.DrugAdverseEventRow{
			{DrugKey: 1, DrugName: "x", AEKey: 2, AELabel: "headache", Frequency: graphtest.Ptr(0.03), ClaimKey: 11},
			{DrugKey: 1, DrugName: "x", AEKey: 3, AELabel: "nausea", Frequency: graphtest.Ptr(0.12), ClaimKey: 12},
			{DrugKey: 1, DrugName: "x", AEKey: 4, AELabel: "dizziness", Frequency: graphtest.Ptr(0.003), ClaimKey: 13},
		},
	}
	lib := newTestLibrary(store)

	aes, err := lib.GetDrugAdverseEvents(context.Background(), 1, nil, 100)
	if err != nil {
		t.Fatalf("GetDrugAdverseEvents() error = %v", err)
	}
	if len(aes) != 3 {
		t.Fatalf("expected 3 adverse events, got %d", len(aes))
	}
	if aes[0].AELabel != "nausea" || aes[2].AELabel != "dizziness" {
		t.Fatalf("expected frequency-descending order, got %v, %v, %v", aes[0].AELabel, aes[1].AELabel, aes[2].AELabel)
	}
}

func TestGetDrugAdverseEvents_InvalidFrequency(t *testing.T) {
	lib := newTestLibrary(&graphtest.FakeStore{})

	_, err := lib.GetDrugAdverseEvents(context.Background(), 1, graphtest.Ptr(1.5), 10)
	var toolErr *ToolError
	if !asToolError(err, &toolErr) || toolErr.Kind != ErrInvalidArgs {
		t.Fatalf("expected invalid_args for out-of-range frequency, got %v", err)
	}
}

func TestGetDrugLabelSections_TruncatesAt10KB(t *testing.T) {
	long := strings.Repeat("a", maxLabelSectionBytes+500)
	payload, _ := json.Marshal(map[string]string{
		"adverse_reactions": long,
		"warnings":          "short warning text",
	})
	statement, _ := json.Marshal(map[string]string{"brand_name": "Examplol"})

	store := &graphtest.FakeStore{
		LabelClaims: []graph.DrugLabelClaimRow{
			{DrugKey: 1, DrugName: "x", ClaimKey: 77, StatementJSON: statement, PayloadJSON: payload},
		},
	}
	lib := newTestLibrary(store)

	sections, err := lib.GetDrugLabelSections(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("GetDrugLabelSections() error = %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}

	for _, sec := range sections {
		switch sec.SectionName {
		case "adverse_reactions":
			if len(sec.Content) != maxLabelSectionBytes || !sec.Truncated {
				t.Fatalf("expected 10KB truncation, got len=%d truncated=%v", len(sec.Content), sec.Truncated)
			}
		case "warnings":
			if sec.Truncated {
				t.Fatalf("short section must not be truncated")
			}
		}
		if sec.BrandName == nil || *sec.BrandName != "Examplol" {
			t.Fatalf("expected brand name from statement, got %v", sec.BrandName)
		}
	}
}

func TestGetDrugLabelSections_SectionFilter(t *testing.T) {
	payload, _ := json.Marshal(map[string]string{
		"adverse_reactions": "a",
		"warnings":          "w",
	})
	store := &graphtest.FakeStore{
		LabelClaims: []graph.DrugLabelClaimRow{
			{DrugKey: 1, DrugName: "x", ClaimKey: 77, PayloadJSON: payload},
		},
	}
	lib := newTestLibrary(store)

	sections, err := lib.GetDrugLabelSections(context.Background(), 1, []string{"warnings"})
	if err != nil {
		t.Fatalf("GetDrugLabelSections() error = %v", err)
	}
	if len(sections) != 1 || sections[0].SectionName != "warnings" {
		t.Fatalf("expected only the warnings section, got %+v", sections)
	}
}

func TestGetDrugFAERSSignals_FiltersAndSorts(t *testing.T) {
	meta := func(prr float64, count int) []byte {
		b, _ := json.Marshal(map[string]any{"prr": prr, "ror": prr * 1.1, "chi2": 40.0, "count": count})
		return b
	}
	store := &graphtest.FakeStore{
		FAERSClaims: []graph.FAERSClaimRow{
			{DrugKey: 1, DrugName: "x", AEKey: 10, AELabel: "rash", ClaimKey: 1, MetaJSON: meta(2.5, 30)},
			{DrugKey: 1, DrugName: "x", AEKey: 11, AELabel: "fever", ClaimKey: 2, MetaJSON: meta(8.1, 4)},
			{DrugKey: 1, DrugName: "x", AEKey: 12, AELabel: "chills", ClaimKey: 3, MetaJSON: meta(1.2, 500)},
		},
	}
	lib := newTestLibrary(store)

	signals, err := lib.GetDrugFAERSSignals(context.Background(), 1, 200, 1, graphtest.Ptr(2.0))
	if err != nil {
		t.Fatalf("GetDrugFAERSSignals() error = %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("expected min_prr to drop one signal, got %d", len(signals))
	}
	if signals[0].AELabel != "fever" {
		t.Fatalf("expected PRR-descending order, got %s first", signals[0].AELabel)
	}

	signals, err = lib.GetDrugFAERSSignals(context.Background(), 1, 200, 100, nil)
	if err != nil {
		t.Fatalf("GetDrugFAERSSignals() error = %v", err)
	}
	if len(signals) != 1 || signals[0].AELabel != "chills" {
		t.Fatalf("expected min_count filter, got %+v", signals)
	}
}

func TestGetDrugProfile_UnknownDrug(t *testing.T) {
	lib := newTestLibrary(&graphtest.FakeStore{})

	profile, err := lib.GetDrugProfile(context.Background(), 404)
	if err != nil {
		t.Fatalf("GetDrugProfile() error = %v", err)
	}
	if profile.Drug != nil {
		t.Fatalf("expected nil drug info for unknown key, got %+v", profile.Drug)
	}
}

func asToolError(err error, target **ToolError) bool {
	if err == nil {
		return false
	}
	te, ok := err.(*ToolError)
	if !ok {
		return false
	}
	*target = te
	return true
}
