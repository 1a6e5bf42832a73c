package doctor

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/a-marczewski/petmem/internal/config"
	"github.com/a-marczewski/petmem/internal/snapshot"
)

// Diagnostics holds diagnostic information
type Diagnostics struct {
	Checks []CheckResult `json:"checks"`
	Issues []string      `json:"issues"`
	Status string        `json:"status"`
}

// CheckResult represents the result of a single check
type CheckResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"` // "pass", "fail", "warn"
	Message  string `json:"message"`
	Severity string `json:"severity"` // "info", "warning", "error"
}

// Runner runs diagnostic checks
type Runner struct {
	config *config.Config
}

// NewRunner creates a new diagnostic runner
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{
		config: cfg,
	}
}

// RunAll runs all diagnostic checks
func (d *Runner) RunAll() *Diagnostics {
	var results []CheckResult
	var issues []string

	results = append(results, d.checkConfiguration()...)
	results = append(results, d.checkDataDirectory()...)
	results = append(results, d.checkSnapshotStore()...)
	results = append(results, d.checkServer()...)

	for _, result := range results {
		if result.Status == "fail" {
			issues = append(issues, result.Message)
		}
	}

	status := "healthy"
	if len(issues) > 0 {
		status = "issues_found"
	}

	return &Diagnostics{
		Checks: results,
		Issues: issues,
		Status: status,
	}
}

// checkConfiguration checks configuration validity
func (d *Runner) checkConfiguration() []CheckResult {
	var results []CheckResult

	if err := d.config.Validate(); err != nil {
		results = append(results, CheckResult{
			Name:     "configuration_validation",
			Status:   "fail",
			Message:  fmt.Sprintf("Configuration validation failed: %v", err),
			Severity: "error",
		})
	} else {
		results = append(results, CheckResult{
			Name:     "configuration_validation",
			Status:   "pass",
			Message:  "Configuration is valid",
			Severity: "info",
		})
	}

	return results
}

// checkDataDirectory checks the .petmem data directory
func (d *Runner) checkDataDirectory() []CheckResult {
	var results []CheckResult

	dataDir := config.DataDir()

	if err := config.EnsureDataDirs(dataDir); err != nil {
		results = append(results, CheckResult{
			Name:     "data_directory_exists",
			Status:   "fail",
			Message:  fmt.Sprintf("Cannot create data directory %s: %v", dataDir, err),
			Severity: "error",
		})
		return results // Early return since the write test will fail too
	}

	results = append(results, CheckResult{
		Name:     "data_directory_exists",
		Status:   "pass",
		Message:  fmt.Sprintf("Data directory present: %s", dataDir),
		Severity: "info",
	})

	if err := testDirectoryPermissions(dataDir); err != nil {
		results = append(results, CheckResult{
			Name:     "data_directory_permissions",
			Status:   "fail",
			Message:  fmt.Sprintf("Insufficient permissions for data directory: %v", err),
			Severity: "error",
		})
	} else {
		results = append(results, CheckResult{
			Name:     "data_directory_permissions",
			Status:   "pass",
			Message:  "Sufficient permissions for data directory",
			Severity: "info",
		})
	}

	return results
}

// testDirectoryPermissions tests if we can read and write to a directory
func testDirectoryPermissions(dir string) error {
	testFile := filepath.Join(dir, ".permission_test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return err
	}

	os.Remove(testFile)

	return nil
}

// checkSnapshotStore checks the snapshot database when persistence is enabled
func (d *Runner) checkSnapshotStore() []CheckResult {
	var results []CheckResult

	if d.config.SnapshotPath == "" {
		results = append(results, CheckResult{
			Name:     "snapshot_persistence",
			Status:   "warn",
			Message:  "Snapshot persistence is disabled, memory will not survive restarts",
			Severity: "warning",
		})
		return results
	}

	db, err := snapshot.Open(d.config.SnapshotPath, nil)
	if err != nil {
		results = append(results, CheckResult{
			Name:     "snapshot_database_open",
			Status:   "fail",
			Message:  fmt.Sprintf("Cannot open snapshot database: %v", err),
			Severity: "error",
		})
		return results
	}
	defer db.Close()

	results = append(results, CheckResult{
		Name:     "snapshot_database_open",
		Status:   "pass",
		Message:  fmt.Sprintf("Snapshot database is accessible: %s", d.config.SnapshotPath),
		Severity: "info",
	})

	if _, err := db.GetConnection().Exec("PRAGMA integrity_check"); err != nil {
		results = append(results, CheckResult{
			Name:     "snapshot_database_integrity",
			Status:   "fail",
			Message:  fmt.Sprintf("Snapshot database integrity check failed: %v", err),
			Severity: "error",
		})
	} else {
		results = append(results, CheckResult{
			Name:     "snapshot_database_integrity",
			Status:   "pass",
			Message:  "Snapshot database integrity check passed",
			Severity: "info",
		})
	}

	if snap, err := db.Load(); err != nil {
		results = append(results, CheckResult{
			Name:     "snapshot_load",
			Status:   "fail",
			Message:  fmt.Sprintf("Cannot load stored snapshot: %v", err),
			Severity: "error",
		})
	} else {
		results = append(results, CheckResult{
			Name:     "snapshot_load",
			Status:   "pass",
			Message:  fmt.Sprintf("Stored snapshot loads cleanly (%d recent, %d important)", len(snap.Recent), len(snap.Important)),
			Severity: "info",
		})
	}

	return results
}

// checkServer checks whether a petmem server is listening
func (d *Runner) checkServer() []CheckResult {
	var results []CheckResult

	addr := d.config.ListenAddr()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		results = append(results, CheckResult{
			Name:     "server_reachable",
			Status:   "warn",
			Message:  fmt.Sprintf("No server listening on %s, start one with 'petmem serve'", addr),
			Severity: "warning",
		})
		return results
	}
	conn.Close()

	results = append(results, CheckResult{
		Name:     "server_reachable",
		Status:   "pass",
		Message:  fmt.Sprintf("Server is listening on %s", addr),
		Severity: "info",
	})

	return results
}

// PrintReport prints a formatted diagnostic report
func (d *Diagnostics) PrintReport() {
	fmt.Printf("=== petmem Diagnostic Report ===\n")
	fmt.Printf("Status: %s\n\n", d.Status)

	if len(d.Issues) > 0 {
		fmt.Printf("Issues Found:\n")
		for i, issue := range d.Issues {
			fmt.Printf("  %d. %s\n", i+1, issue)
		}
		fmt.Println()
	}

	fmt.Printf("Detailed Checks:\n")
	for _, check := range d.Checks {
		statusSymbol := "✓"
		if check.Status == "fail" {
			statusSymbol = "✗"
		} else if check.Status == "warn" {
			statusSymbol = "!"
		}

		fmt.Printf("  %s %s: %s\n", statusSymbol, check.Name, check.Message)
	}

	fmt.Println("\nRecommendations:")
	if len(d.Issues) == 0 {
		fmt.Println("  ✓ System is operating normally")
	} else {
		fmt.Println("  • Check the data directory permissions")
		fmt.Println("  • Verify the snapshot database is not corrupted")
		fmt.Println("  • Review configuration settings")
	}
}
