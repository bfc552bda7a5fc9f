package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/glasslab/cp2kit/internal/config"
	"github.com/glasslab/cp2kit/internal/errors"
	"github.com/glasslab/cp2kit/internal/launch"
	"github.com/glasslab/cp2kit/internal/report"
)

// DoctorOpts holds options for the doctor command.
type DoctorOpts struct {
	// Engine overrides the engine binary; empty means PATH lookup.
	Engine string

	// WorkDir is the directory to diagnose; empty means the current
	// directory.
	WorkDir string
}

// DoctorCheck is one diagnostic result.
type DoctorCheck struct {
	Name   string
	OK     bool
	Detail string
}

// Doctor implements the `cp2kit doctor` command. Every check runs to
// completion even after one fails, so a single invocation shows the full
// environment state; the command exits non-zero when any check failed.
func Doctor(cwd string, opts DoctorOpts, logger *zap.Logger, stdout, stderr io.Writer) error {
	workDir := cwd
	if opts.WorkDir != "" {
		workDir = opts.WorkDir
	}
	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return errors.Wrap(errors.EInternal, "resolving work directory", err)
	}

	var checks []DoctorCheck

	// Engine binary on PATH.
	launcher := launch.NewLauncher(opts.Engine, workDir, 0, logger)
	if path, err := launcher.ResolveEngine(); err != nil {
		checks = append(checks, DoctorCheck{Name: "engine", Detail: err.Error()})
	} else {
		checks = append(checks, DoctorCheck{Name: "engine", OK: true, Detail: path})
	}

	// Basis set and potential data directory.
	if dataDir := os.Getenv("CP2K_DATA_DIR"); dataDir == "" {
		checks = append(checks, DoctorCheck{Name: "cp2k_data_dir", Detail: "CP2K_DATA_DIR is not set"})
	} else if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
		checks = append(checks, DoctorCheck{Name: "cp2k_data_dir", Detail: "CP2K_DATA_DIR is not a directory: " + dataDir})
	} else {
		checks = append(checks, DoctorCheck{Name: "cp2k_data_dir", OK: true, Detail: dataDir})
	}

	// Configuration parses and validates.
	cfg, found, err := config.Load(workDir)
	switch {
	case err != nil:
		checks = append(checks, DoctorCheck{Name: "config", Detail: err.Error()})
		cfg = config.DefaultConfig()
	case found:
		checks = append(checks, DoctorCheck{Name: "config", OK: true, Detail: filepath.Join(workDir, config.ConfigFileName)})
	default:
		checks = append(checks, DoctorCheck{Name: "config", OK: true, Detail: "defaults (no " + config.ConfigFileName + ")"})
	}

	// Reports directory is writable.
	reportsDir := cfg.ReportsDir
	if !filepath.IsAbs(reportsDir) {
		reportsDir = filepath.Join(workDir, reportsDir)
	}
	if err := checkWritable(reportsDir); err != nil {
		checks = append(checks, DoctorCheck{Name: "reports_dir", Detail: fmt.Sprintf("not writable: %v", err)})
	} else {
		checks = append(checks, DoctorCheck{Name: "reports_dir", OK: true, Detail: reportsDir})
	}

	// Persisted summary records still decode.
	if detail, err := checkRecords(reportsDir); err != nil {
		checks = append(checks, DoctorCheck{Name: "report_records", Detail: err.Error()})
	} else {
		checks = append(checks, DoctorCheck{Name: "report_records", OK: true, Detail: detail})
	}

	writeDoctorOutput(stdout, workDir, checks)

	var failed []string
	for _, c := range checks {
		if !c.OK {
			failed = append(failed, c.Name)
		}
	}
	if len(failed) > 0 {
		return errors.NewWithDetails(
			errors.EUsage,
			"doctor found problems: "+strings.Join(failed, ", "),
			map[string]string{"failed_checks": strings.Join(failed, ",")},
		)
	}
	return nil
}

// checkWritable probes the directory with a throwaway file, creating the
// directory if needed.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// checkRecords loads every summary record under dir and reports how many
// decoded. An empty or absent reports directory is healthy.
func checkRecords(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*_summary.json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "no records", nil
	}
	store := report.NewStore(dir)
	for _, m := range matches {
		project := strings.TrimSuffix(filepath.Base(m), "_summary.json")
		if _, err := store.Load(project); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%d readable", len(matches)), nil
}

func writeDoctorOutput(w io.Writer, workDir string, checks []DoctorCheck) {
	_, _ = fmt.Fprintf(w, "work_dir: %s\n", workDir)
	for _, c := range checks {
		_, _ = fmt.Fprintf(w, "%s_ok: %s\n", c.Name, boolStr(c.OK))
		_, _ = fmt.Fprintf(w, "%s: %s\n", c.Name, c.Detail)
	}
}
