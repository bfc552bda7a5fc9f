package plan

import (
	"testing"

	"github.com/glasslab/cp2kit/internal/artifact"
	"github.com/glasslab/cp2kit/internal/errors"
)

func TestParseProfile(t *testing.T) {
	tests := []struct {
		in      string
		want    Profile
		wantErr bool
	}{
		{in: "compat", want: ProfileCompat},
		{in: "fast", want: ProfileFast},
		{in: "strict", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProfile(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseProfile(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateProject(t *testing.T) {
	tests := []struct {
		name    string
		project string
		wantErr bool
	}{
		{name: "valid", project: "as2se3"},
		{name: "valid hyphen underscore", project: "md_smoke-fast"},
		{name: "too short", project: "a", wantErr: true},
		{name: "starts with digit", project: "2fast", wantErr: true},
		{name: "contains slash", project: "a/b", wantErr: true},
		{name: "contains space", project: "a b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProject(tt.project)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProject(%q) err = %v, wantErr %v", tt.project, err, tt.wantErr)
			}
		})
	}
}

func TestChainPlan_SinglePhase(t *testing.T) {
	p, err := ChainPlan("as2se3", []string{"inputs/md_smoke_compat.inp"}, ModeMolecularDynamics, ProfileCompat)
	if err != nil {
		t.Fatalf("ChainPlan failed: %v", err)
	}
	if len(p.Phases) != 1 {
		t.Fatalf("expected 1 phase, got %d", len(p.Phases))
	}
	if len(p.Phases[0].Requires) != 0 {
		t.Errorf("initial phase must require nothing, got %v", p.Phases[0].Requires)
	}
}

func TestChainPlan_RestartChain(t *testing.T) {
	decks := []string{"inputs/phase1.inp", "inputs/phase2.inp", "inputs/phase3.inp"}
	p, err := ChainPlan("as2se3", decks, ModeMolecularDynamics, ProfileFast)
	if err != nil {
		t.Fatalf("ChainPlan failed: %v", err)
	}
	if len(p.Phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(p.Phases))
	}
	for i := 1; i < 3; i++ {
		requires := p.Phases[i].Requires
		if len(requires) != 2 {
			t.Fatalf("phase %d requires = %v, want restart+wavefunction", i, requires)
		}
		if requires[0] != artifact.RestartState || requires[1] != artifact.WavefunctionState {
			t.Errorf("phase %d requires = %v", i, requires)
		}
	}
}

func TestChainPlan_SinglePointChainHandsOffWavefunction(t *testing.T) {
	p, err := ChainPlan("seed", []string{"a.inp", "b.inp"}, ModeSinglePoint, ProfileCompat)
	if err != nil {
		t.Fatalf("ChainPlan failed: %v", err)
	}
	requires := p.Phases[1].Requires
	if len(requires) != 1 || requires[0] != artifact.WavefunctionState {
		t.Errorf("sp chain phase 1 requires = %v, want [wavefunction]", requires)
	}
}

func TestValidate_InitialPhaseWithRequirements(t *testing.T) {
	p := RunPlan{
		Project: "as2se3",
		Phases: []PhaseDescriptor{
			{
				Spec:     RunSpec{InputDeck: "a.inp", Project: "as2se3"},
				Requires: []artifact.Kind{artifact.RestartState},
			},
		},
	}
	err := p.Validate()
	if errors.GetCode(err) != errors.EInvalidPlan {
		t.Errorf("expected E_INVALID_PLAN, got %v", err)
	}
}

func TestValidate_RequirementNeverProduced(t *testing.T) {
	p := RunPlan{
		Project: "as2se3",
		Phases: []PhaseDescriptor{
			{
				Spec:     RunSpec{InputDeck: "a.inp", Project: "as2se3"},
				Produces: []artifact.Kind{artifact.Log, artifact.WavefunctionState},
			},
			{
				Spec:     RunSpec{InputDeck: "b.inp", Project: "as2se3"},
				Requires: []artifact.Kind{artifact.RestartState},
			},
		},
	}
	err := p.Validate()
	if errors.GetCode(err) != errors.EInvalidPlan {
		t.Errorf("expected E_INVALID_PLAN, got %v", err)
	}
}

func TestValidate_EmptyPlan(t *testing.T) {
	p := RunPlan{Project: "as2se3"}
	if errors.GetCode(p.Validate()) != errors.EInvalidPlan {
		t.Error("expected E_INVALID_PLAN for empty plan")
	}
}

func TestCloneEnv_Isolated(t *testing.T) {
	spec := RunSpec{ExtraEnv: map[string]string{"CP2K_DATA_DIR": "/data"}}
	cp := spec.CloneEnv()
	cp["CP2K_DATA_DIR"] = "/other"
	if spec.ExtraEnv["CP2K_DATA_DIR"] != "/data" {
		t.Error("CloneEnv must not alias the original map")
	}
}
