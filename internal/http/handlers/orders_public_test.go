package handlers

import (
	"strings"
	"testing"
)

func optionGroupsFixture() (map[int64]*menuOptionGroupSpec, []int64) {
	groups := map[int64]*menuOptionGroupSpec{
		1: {
			MenuID: 10, Name: "Spice Level", SelectionType: "SINGLE", IsRequired: true,
			Options: map[int64]menuOptionSpec{
				11: {Name: "Mild"},
				12: {Name: "Hot"},
			},
		},
		2: {
			MenuID: 10, Name: "Toppings", SelectionType: "MULTIPLE", IsRequired: false,
			Options: map[int64]menuOptionSpec{
				21: {Name: "Egg", ExtraPrice: 5000},
				22: {Name: "Extra Chicken", ExtraPrice: 8000},
			},
		},
		3: {
			MenuID: 99, Name: "Size", SelectionType: "SINGLE", IsRequired: true,
			Options: map[int64]menuOptionSpec{31: {Name: "Large", ExtraPrice: 4000}},
		},
	}
	return groups, []int64{1, 2}
}

func TestResolveItemOptions(t *testing.T) {
	groups, groupIDs := optionGroupsFixture()

	cases := []struct {
		name       string
		selections []publicOrderItemOpt
		extra      int64
		options    int
		errPart    string
	}{
		{
			name: "required single plus toppings",
			selections: []publicOrderItemOpt{
				{GroupID: 1, OptionID: 12},
				{GroupID: 2, OptionID: 21},
				{GroupID: 2, OptionID: 22},
			},
			extra:   13000,
			options: 3,
		},
		{
			name:       "required group satisfied alone",
			selections: []publicOrderItemOpt{{GroupID: 1, OptionID: 11}},
			extra:      0,
			options:    1,
		},
		{
			name:    "required group omitted",
			errPart: "requires a Spice Level selection",
		},
		{
			name: "two picks in a single-select group",
			selections: []publicOrderItemOpt{
				{GroupID: 1, OptionID: 11},
				{GroupID: 1, OptionID: 12},
			},
			errPart: "choose one Spice Level",
		},
		{
			name: "same option twice is not double charged",
			selections: []publicOrderItemOpt{
				{GroupID: 1, OptionID: 11},
				{GroupID: 2, OptionID: 21},
				{GroupID: 2, OptionID: 21},
			},
			errPart: "selected more than once",
		},
		{
			name: "group from another menu",
			selections: []publicOrderItemOpt{
				{GroupID: 1, OptionID: 11},
				{GroupID: 3, OptionID: 31},
			},
			errPart: "unknown option group 3",
		},
		{
			name: "option outside its group",
			selections: []publicOrderItemOpt{
				{GroupID: 1, OptionID: 21},
			},
			errPart: "unknown option 21",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolved, extra, err := resolveItemOptions(10, "Nasi Goreng", tc.selections, groups, groupIDs)
			if tc.errPart != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got none", tc.errPart)
				}
				if !strings.Contains(err.Error(), tc.errPart) {
					t.Fatalf("expected error containing %q, got %q", tc.errPart, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if extra != tc.extra {
				t.Fatalf("expected extra %d, got %d", tc.extra, extra)
			}
			if len(resolved) != tc.options {
				t.Fatalf("expected %d resolved options, got %d", tc.options, len(resolved))
			}
		})
	}
}

func TestResolveItemOptionsNoGroups(t *testing.T) {
	// A menu without option groups accepts an empty selection and rejects any
	// selection at all.
	if _, extra, err := resolveItemOptions(5, "Es Teh", nil, map[int64]*menuOptionGroupSpec{}, nil); err != nil || extra != 0 {
		t.Fatalf("expected clean pass, got extra=%d err=%v", extra, err)
	}
	_, _, err := resolveItemOptions(5, "Es Teh", []publicOrderItemOpt{{GroupID: 1, OptionID: 11}}, map[int64]*menuOptionGroupSpec{}, nil)
	if err == nil {
		t.Fatal("expected error for selection on a menu without groups")
	}
}
