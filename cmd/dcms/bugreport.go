package main

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dcms-nepal/dcms/internal/config"
	"github.com/spf13/cobra"
)

const bugreportLogLimit = 3

var (
	bugreportNowFn = func() time.Time {
		return time.Now().UTC()
	}
	bugreportHomeFn  = config.Home
	bugreportGetwdFn = os.Getwd
)

func newBugreportCommand(cfg *config.Config, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:         "bugreport",
		Short:       "Collect recent logs and redacted settings into a tarball",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationStandalone: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if logger != nil {
				logger.With("command", "bugreport").Info("collecting diagnostic bundle")
			}
			return runBugReport(cfg, cmd.OutOrStdout())
		},
	}
}

func runBugReport(cfg *config.Config, out io.Writer) error {
	stateDir, err := bugreportHomeFn()
	if err != nil {
		return err
	}
	cwd, err := bugreportGetwdFn()
	if err != nil {
		return fmt.Errorf("resolve current directory: %w", err)
	}

	bundlePath := filepath.Join(filepath.Clean(cwd),
		fmt.Sprintf("dcms-bugreport-%s.tar.gz", bugreportNowFn().Format("20060102-150405")))

	files, summary := collectBugreport(cfg, stateDir)
	files["README.txt"] = []byte(summary.readme())
	if err := writeBundle(bundlePath, files); err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "Bug report written to %s\n", bundlePath)
	return err
}

type bugreportSummary struct {
	generated string
	logs      []string
	runID     string
	traceID   string
	warnings  []string
}

// collectBugreport gathers bundle entries keyed by archive path. Missing
// inputs become warnings, never failures.
func collectBugreport(cfg *config.Config, stateDir string) (map[string][]byte, bugreportSummary) {
	summary := bugreportSummary{generated: bugreportNowFn().Format(time.RFC3339)}
	files := map[string][]byte{
		"version.txt": []byte("dcms " + strings.TrimSpace(Version) + "\n"),
	}

	logs, err := newestFiles(filepath.Join(stateDir, "logs"), bugreportLogLimit)
	if err != nil {
		summary.warnings = append(summary.warnings, fmt.Sprintf("no logs: %v", err))
	}
	for _, path := range logs {
		// #nosec G304 -- paths come from listing the dcms log directory.
		data, err := os.ReadFile(path)
		if err != nil {
			summary.warnings = append(summary.warnings, fmt.Sprintf("skip log %s: %v", filepath.Base(path), err))
			continue
		}
		files["logs/"+filepath.Base(path)] = data
		summary.logs = append(summary.logs, filepath.Base(path))
		if summary.runID == "" && summary.traceID == "" {
			summary.runID, summary.traceID = lastCorrelation(data)
		}
	}
	files["last-run.txt"] = fmt.Appendf(nil, "run_id: %s\ntrace_id: %s\n", summary.runID, summary.traceID)

	// #nosec G304 -- fixed file under the dcms state directory.
	configText, err := os.ReadFile(filepath.Join(stateDir, "config.toml"))
	if err != nil {
		summary.warnings = append(summary.warnings, "no config.toml, defaults in effect")
		configText = []byte("# no config.toml\n")
	}
	files["config.toml"] = []byte(redactSensitiveConfig(string(configText)))

	if cfg != nil {
		files["effective.txt"] = fmt.Appendf(nil,
			"api_url = %s\nrequest_timeout = %s\nsession.backend = %s\nsession.saved = %t\n",
			cfg.APIURL, cfg.RequestTimeout, cfg.Session.Backend, sessionSaved(cfg))
	}
	return files, summary
}

func sessionSaved(cfg *config.Config) bool {
	if cfg.Session.Backend != config.SessionBackendFile {
		return false
	}
	_, err := os.Stat(cfg.Session.Path)
	return err == nil
}

// lastCorrelation returns the newest run_id/trace_id pair in a JSON log.
func lastCorrelation(data []byte) (string, string) {
	var runID, traceID string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var record struct {
			RunID   string `json:"run_id"`
			TraceID string `json:"trace_id"`
		}
		if json.Unmarshal(scanner.Bytes(), &record) != nil {
			continue
		}
		if record.RunID != "" || record.TraceID != "" {
			runID, traceID = record.RunID, record.TraceID
		}
	}
	return runID, traceID
}

// redactSensitiveConfig masks values of credential-like TOML keys and of any
// URL carrying userinfo.
func redactSensitiveConfig(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(key))
		if isSensitiveToken(name) || (strings.Contains(value, "://") && strings.Contains(value, "@")) {
			lines[i] = key + `= "***REDACTED***"`
		}
	}
	return strings.Join(lines, "\n")
}

func (s bugreportSummary) readme() string {
	var b strings.Builder
	b.WriteString("dcms bug report\n\n")
	fmt.Fprintf(&b, "Generated: %s\nVersion: %s\nrun_id: %s\ntrace_id: %s\n\n", s.generated, Version, s.runID, s.traceID)
	b.WriteString("Contents:\n")
	fmt.Fprintf(&b, "- logs/ (%d newest: %s)\n", len(s.logs), strings.Join(s.logs, ", "))
	b.WriteString("- config.toml (redacted)\n- effective.txt\n- version.txt\n- last-run.txt\n")
	b.WriteString("\nNo access or refresh token is included.\n")
	if len(s.warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, warning := range s.warnings {
			b.WriteString("- " + warning + "\n")
		}
	}
	return b.String()
}

func writeBundle(destination string, files map[string][]byte) (err error) {
	// #nosec G304 -- destination is a generated name in the working directory.
	archive, err := os.OpenFile(destination, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", destination, err)
	}
	gz := gzip.NewWriter(archive)
	tw := tar.NewWriter(gz)
	defer func() {
		err = errors.Join(err, tw.Close(), gz.Close(), archive.Close())
	}()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	modTime := bugreportNowFn()
	for _, name := range names {
		data := files[name]
		header := &tar.Header{
			Name:     name,
			Mode:     0o600,
			Size:     int64(len(data)),
			ModTime:  modTime,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write tar header for %s: %w", name, err)
		}
		if _, err := tw.Write(data); err != nil {
			return fmt.Errorf("write %s into archive: %w", name, err)
		}
	}
	return nil
}

// newestFiles lists regular files in dir, newest first.
func newestFiles(dir string, limit int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type dated struct {
		path    string
		modTime time.Time
	}
	files := make([]dated, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, dated{path: filepath.Join(dir, entry.Name()), modTime: info.ModTime()})
	}
	slices.SortFunc(files, func(a, b dated) int {
		return b.modTime.Compare(a.modTime)
	})
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	paths := make([]string, 0, len(files))
	for _, file := range files {
		paths = append(paths, file.path)
	}
	return paths, nil
}
