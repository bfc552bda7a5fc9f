package artifact

import (
	"os"
	"path/filepath"
	"testing"
)

func TestName_EngineConventions(t *testing.T) {
	tests := []struct {
		name    string
		project string
		kind    Kind
		index   int
		want    string
	}{
		{name: "log", project: "as2se3", kind: Log, want: "as2se3.out"},
		{name: "restart", project: "as2se3", kind: RestartState, want: "as2se3-1.restart"},
		{name: "wavefunction", project: "as2se3", kind: WavefunctionState, want: "as2se3-RESTART.wfn"},
		{name: "pos trajectory", project: "as2se3", kind: PositionTrajectory, index: 1, want: "as2se3-pos-1.xyz"},
		{name: "vel trajectory", project: "as2se3", kind: VelocityTrajectory, index: 2, want: "as2se3-vel-2.xyz"},
		{name: "hyphenated project", project: "md-smoke-fast", kind: Log, want: "md-smoke-fast.out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Name(tt.project, tt.kind, tt.index)
			if got != tt.want {
				t.Errorf("Name(%q, %v, %d) = %q, want %q", tt.project, tt.kind, tt.index, got, tt.want)
			}
		})
	}
}

func TestName_PureFunction(t *testing.T) {
	for _, kind := range All() {
		a := Name("proj", kind, 3)
		b := Name("proj", kind, 3)
		if a != b {
			t.Errorf("Name not deterministic for %v: %q vs %q", kind, a, b)
		}
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{Log, "log"},
		{RestartState, "restart"},
		{WavefunctionState, "wavefunction"},
		{PositionTrajectory, "pos_trajectory"},
		{VelocityTrajectory, "vel_trajectory"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("%v.String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestDiscover_IndexedTrajectory(t *testing.T) {
	dir := t.TempDir()

	// No match yet
	if got := Discover(dir, "proj", PositionTrajectory); got != "" {
		t.Errorf("Discover on empty dir = %q, want empty", got)
	}

	// Multiple indices: lexically first wins
	for _, name := range []string{"proj-pos-2.xyz", "proj-pos-1.xyz"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	want := filepath.Join(dir, "proj-pos-1.xyz")
	if got := Discover(dir, "proj", PositionTrajectory); got != want {
		t.Errorf("Discover = %q, want %q", got, want)
	}
}

func TestDiscover_FixedKind(t *testing.T) {
	dir := t.TempDir()

	if got := Discover(dir, "proj", RestartState); got != "" {
		t.Errorf("Discover missing restart = %q, want empty", got)
	}

	p := filepath.Join(dir, "proj-1.restart")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Discover(dir, "proj", RestartState); got != p {
		t.Errorf("Discover = %q, want %q", got, p)
	}
}
