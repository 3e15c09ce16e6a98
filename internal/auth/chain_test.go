package auth

import (
	"testing"

	"casgate/internal/constants"
)

func i64(v int64) *int64 { return &v }

func TestBuildChain(t *testing.T) {
	parent := []string{"dlt_A", "dlt_B"}
	child := BuildChain(parent, "dlt_C")

	if len(child) != 3 || child[2] != "dlt_C" {
		t.Fatalf("BuildChain = %v, want parent + dlt_C", child)
	}
	child[0] = "mutated"
	if parent[0] != "dlt_A" {
		t.Error("BuildChain must copy the parent chain, not alias it")
	}
}

func TestIsAncestor(t *testing.T) {
	chain := []string{"dlt_ROOT", "dlt_MID", "dlt_LEAF"}

	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"root is ancestor", "dlt_ROOT", true},
		{"middle is ancestor", "dlt_MID", true},
		{"self is ancestor", "dlt_LEAF", true},
		{"sibling is not", "dlt_OTHER", false},
		{"empty id is not", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAncestor(tt.id, chain); got != tt.want {
				t.Errorf("IsAncestor(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestIsChainValid(t *testing.T) {
	longest := make([]string, constants.MaxDepth+1)
	tooLong := make([]string, constants.MaxDepth+2)
	for i := range longest {
		longest[i] = "dlt_" + string(rune('A'+i))
	}
	for i := range tooLong {
		tooLong[i] = "dlt_" + string(rune('A'+i))
	}

	tests := []struct {
		name  string
		chain []string
		want  bool
	}{
		{"single root", []string{"dlt_A"}, true},
		{"max length", longest, true},
		{"empty", nil, false},
		{"over max", tooLong, false},
		{"duplicate id", []string{"dlt_A", "dlt_B", "dlt_A"}, false},
		{"empty entry", []string{"dlt_A", ""}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsChainValid(tt.chain); got != tt.want {
				t.Errorf("IsChainValid(%v) = %v, want %v", tt.chain, got, tt.want)
			}
		})
	}
}

func TestIsDirectChildChain(t *testing.T) {
	parent := []string{"dlt_A", "dlt_B"}

	tests := []struct {
		name  string
		child []string
		want  bool
	}{
		{"direct child", []string{"dlt_A", "dlt_B", "dlt_C"}, true},
		{"same length", []string{"dlt_A", "dlt_B"}, false},
		{"grandchild", []string{"dlt_A", "dlt_B", "dlt_C", "dlt_D"}, false},
		{"diverging prefix", []string{"dlt_A", "dlt_X", "dlt_C"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDirectChildChain(parent, tt.child); got != tt.want {
				t.Errorf("IsDirectChildChain(%v, %v) = %v, want %v", parent, tt.child, got, tt.want)
			}
		})
	}
}

func TestChainDepth(t *testing.T) {
	if d := ChainDepth([]string{"dlt_A"}); d != 0 {
		t.Errorf("root chain depth = %d, want 0", d)
	}
	if d := ChainDepth([]string{"dlt_A", "dlt_B", "dlt_C"}); d != 2 {
		t.Errorf("three-entry chain depth = %d, want 2", d)
	}
}

func TestValidatePermissions(t *testing.T) {
	tests := []struct {
		name     string
		parent   Delegate
		input    CreateDelegateInput
		wantCode string
	}{
		{
			name:   "full parent grants anything",
			parent: Delegate{CanUpload: true, CanManageDepot: true},
			input:  CreateDelegateInput{CanUpload: true, CanManageDepot: true},
		},
		{
			name:   "narrowing is allowed",
			parent: Delegate{CanUpload: true, CanManageDepot: true},
			input:  CreateDelegateInput{},
		},
		{
			name:     "upload escalation",
			parent:   Delegate{CanManageDepot: true},
			input:    CreateDelegateInput{CanUpload: true},
			wantCode: constants.ErrCodePermissionEscalation,
		},
		{
			name:     "depot management escalation",
			parent:   Delegate{CanUpload: true},
			input:    CreateDelegateInput{CanManageDepot: true},
			wantCode: constants.ErrCodePermissionEscalation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePermissions(&tt.parent, &tt.input)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected escalation error, got nil")
			}
			if err.Code != constants.ErrCodePermissionEscalation {
				t.Errorf("error code = %s, want %s", err.Code, constants.ErrCodePermissionEscalation)
			}
		})
	}
}

func TestValidateDepth(t *testing.T) {
	if err := ValidateDepth(constants.MaxDepth - 1); err != nil {
		t.Fatalf("depth %d parent should accept children: %v", constants.MaxDepth-1, err)
	}
	err := ValidateDepth(constants.MaxDepth)
	if err == nil {
		t.Fatal("parent at max depth must reject children")
	}
	if err.Code != constants.ErrCodeDepthExceeded {
		t.Errorf("error code = %s, want %s", err.Code, constants.ErrCodeDepthExceeded)
	}
}

func TestValidateExpiresAt(t *testing.T) {
	tests := []struct {
		name    string
		parent  *int64
		child   *int64
		wantErr bool
	}{
		{"both unbounded", nil, nil, false},
		{"unbounded parent, bounded child", nil, i64(1000), false},
		{"bounded parent, earlier child", i64(2000), i64(1000), false},
		{"bounded parent, equal child", i64(2000), i64(2000), false},
		{"bounded parent, later child", i64(2000), i64(3000), true},
		{"bounded parent, unbounded child", i64(2000), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExpiresAt(tt.parent, tt.child)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateExpiresAt = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && err.Code != constants.ErrCodeExpiresAfterParent {
				t.Errorf("error code = %s, want %s", err.Code, constants.ErrCodeExpiresAfterParent)
			}
		})
	}
}

func TestValidateDelegatedDepots(t *testing.T) {
	parent := map[string]bool{"depot_a": true, "depot_b": true}

	tests := []struct {
		name    string
		parent  map[string]bool
		child   []string
		wantErr bool
	}{
		{"empty child inherits", parent, nil, false},
		{"subset", parent, []string{"depot_a"}, false},
		{"full set", parent, []string{"depot_a", "depot_b"}, false},
		{"unconstrained parent accepts anything", nil, []string{"depot_z"}, false},
		{"escalation", parent, []string{"depot_a", "depot_z"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDelegatedDepots(tt.parent, tt.child)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDelegatedDepots = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCreateDelegateOrder(t *testing.T) {
	// A parent at max depth with no permissions: depth must be reported
	// first even though permissions would also fail.
	parent := &Delegate{Depth: constants.MaxDepth}
	input := &CreateDelegateInput{CanUpload: true}

	err := ValidateCreateDelegate(parent, input, nil)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if err.Code != constants.ErrCodeDepthExceeded {
		t.Errorf("first failure = %s, want %s", err.Code, constants.ErrCodeDepthExceeded)
	}
}
